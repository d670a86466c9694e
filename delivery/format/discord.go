package format

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/marcelsud/chainhook/event"
)

/* Discord renders the event as a Discord webhook message with one embed
 * Embed fields are ordered by arg name so output stays deterministic
 */
type Discord struct{}

type discordMessage struct {
	Content string         `json:"content"`
	Embeds  []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title     string         `json:"title"`
	Timestamp string         `json:"timestamp"`
	Fields    []discordField `json:"fields"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Name returns the format name
func (Discord) Name() string { return "discord" }

// Format renders the event as a Discord webhook payload
func (Discord) Format(ev event.Event) ([]byte, error) {
	fields := []discordField{
		{Name: "Contract", Value: ev.ContractAddress, Inline: true},
		{Name: "Block", Value: fmt.Sprintf("%d", ev.BlockNumber), Inline: true},
		{Name: "Tx", Value: ev.TxHash, Inline: false},
	}

	argNames := make([]string, 0, len(ev.Args))
	for name := range ev.Args {
		argNames = append(argNames, name)
	}
	sort.Strings(argNames)
	for _, name := range argNames {
		fields = append(fields, discordField{
			Name:   name,
			Value:  fmt.Sprintf("%v", ev.Args[name]),
			Inline: true,
		})
	}

	return json.Marshal(discordMessage{
		Content: fmt.Sprintf("Event `%s` on `%s`", ev.EventName, ev.ContractAddress),
		Embeds: []discordEmbed{{
			Title:     ev.EventName,
			Timestamp: ev.Timestamp.UTC().Format(time.RFC3339Nano),
			Fields:    fields,
		}},
	})
}
