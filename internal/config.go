package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host string `env:"HOST,required=true"`
	Port int    `env:"PORT,required=true"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,required=true"`

	BufferSize        int           `env:"BUFFER_SIZE,required=true"`
	SinkTimeout       time.Duration `env:"SINK_TIMEOUT,required=true"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`

	AIGatewayURL      string        `env:"AI_GATEWAY_URL,required=true"`
	AIGatewayKey      string        `env:"AI_GATEWAY_KEY,required=true"`
	AIGatewayModel    string        `env:"AI_GATEWAY_MODEL,required=true"`
	GenerationTimeout time.Duration `env:"GENERATION_TIMEOUT,required=true"`

	EffectMaxAttempts int           `env:"EFFECT_MAX_ATTEMPTS,required=true"`
	EffectRetryDelay  time.Duration `env:"EFFECT_RETRY_DELAY,required=true"`

	// LimitMessages caps one timeline page; nil means the storage default.
	LimitMessages   *int `env:"LIMIT_MESSAGES"`
	SearchLimit     int  `env:"SEARCH_LIMIT,required=true"`
	SearchBatchSize int  `env:"SEARCH_BATCH_SIZE,required=true"`

	CharReplacement string `env:"CHARACTER_REPLACEMENT,required=true"`
	WordlistPath    string `env:"WORDLIST_PATH"`

	DebugPort int `env:"DEBUG_PORT"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
