package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
)

// record is the superset of fields the engine stores as JSON values. Only
// the ones matching the scanned namespace are populated.
type record struct {
	Topic          string    `json:"Topic"`
	Status         string    `json:"Status"`
	AuthorID       string    `json:"AuthorID"`
	RequesterID    string    `json:"RequesterID"`
	RecipientID    string    `json:"RecipientID"`
	Username       string    `json:"Username"`
	Revealed       bool      `json:"Revealed"`
	Number         int       `json:"Number"`
	CreatedAt      time.Time `json:"CreatedAt"`
	ConversationID string    `json:"ConversationID"`
	Facets         struct {
		Synopsis string `json:"synopsis"`
	} `json:"Facets"`
}

func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	// Par défaut on scanne tout; les index (convidx:, reqidx:) sont filtrés
	prefix := flag.String("prefix", "", "Prefix to scan")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "Conversation", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())

			// Les index secondaires ne portent pas de valeur lisible
			if strings.Contains(key, "idx:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				var r record
				if err := json.Unmarshal(v, &r); err != nil {
					fmt.Printf("Error unmarshaling key %s: %v\n", key, err)
					return nil
				}
				table.Append([]string{
					key,
					typeOf(key),
					r.CreatedAt.Format("15:04:05"),
					shortID(r.ConversationID),
					detailOf(key, r),
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal("Error while scanning: ", err)
	}

	table.Render()
}

func typeOf(key string) string {
	namespace, _, _ := strings.Cut(key, ":")
	switch namespace {
	case "conv":
		return "CONVERSATION"
	case "msg", "draft", "timeline":
		return "MESSAGE"
	case "ver":
		return "VERSION"
	case "ref":
		return "REFINEMENT"
	case "req", "reqdone":
		return "TURN"
	case "whisper", "whisperid":
		return "WHISPER"
	case "user", "userid":
		return "USER"
	default:
		return strings.ToUpper(namespace)
	}
}

func detailOf(key string, r record) string {
	switch typeOf(key) {
	case "CONVERSATION":
		return fmt.Sprintf("%s (%s)", r.Topic, r.Status)
	case "MESSAGE":
		return fmt.Sprintf("%s (%s)", r.AuthorID, r.Status)
	case "VERSION":
		return fmt.Sprintf("v%d %s", r.Number, r.Facets.Synopsis)
	case "TURN":
		return fmt.Sprintf("%s (%s)", r.RequesterID, r.Status)
	case "WHISPER":
		return fmt.Sprintf("to %s (revealed=%v)", r.RecipientID, r.Revealed)
	case "USER":
		return r.Username
	default:
		return ""
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func openDB(path string) (*badger.DB, error) {
	options := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLoggingLevel(badger.ERROR)
	return badger.Open(options)
}
