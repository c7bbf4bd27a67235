package answer

import (
	"fmt"

	coreevents "github.com/cexll/agentsdk-go/pkg/core/events"
)

// Tool parameters that carry a city name.
var cityArgKeys = []string{"city_name", "source_city", "target_city"}

// walkEvents makes a single ordered pass over a run's hook events and
// extracts the raw material for the reply: every tool result's text, in
// execution order, and the set of city names the tool calls mentioned.
func walkEvents(events []coreevents.Event) ([]string, map[string]struct{}) {
	var outputs []string
	cities := map[string]struct{}{}

	for _, ev := range events {
		switch ev.Type {
		case coreevents.PreToolUse:
			payload, ok := ev.Payload.(coreevents.ToolUsePayload)
			if !ok {
				continue
			}
			for _, key := range cityArgKeys {
				if city, ok := payload.Params[key].(string); ok && city != "" {
					cities[city] = struct{}{}
				}
			}
		case coreevents.PostToolUse:
			payload, ok := ev.Payload.(coreevents.ToolResultPayload)
			if !ok {
				continue
			}
			if text := resultText(payload); text != "" {
				outputs = append(outputs, text)
			}
		}
	}
	return outputs, cities
}

// resultText renders a tool result the way the model saw it: the output
// string on success, an error document on failure.
func resultText(payload coreevents.ToolResultPayload) string {
	if s, ok := payload.Result.(string); ok && s != "" {
		return s
	}
	if payload.Err != nil {
		return fmt.Sprintf(`{"error":%q}`, payload.Err.Error())
	}
	return ""
}
