package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

type SystemInfoInput struct {
	InfoType string `json:"info_type" jsonschema:"enum=time,enum=cwd,enum=env" jsonschema_description:"What to report: 'time', 'cwd' or 'env'."`
}

var SystemInfoInputSchema = GenerateSchema[SystemInfoInput]()

// EnvAllowList is the fixed set of variables reported by system_info env.
var EnvAllowList = []string{"PATH", "HOME", "USER", "SHELL", "LANG"}

// SystemInfoDefinition reports the local time, working directory or an
// allow-listed view of the environment. now supplies the clock.
func SystemInfoDefinition(now func() time.Time) Definition {
	return Definition{
		Name:        "system_info",
		Description: "Get basic system information: the current time, the working directory, or selected environment variables.",
		InputSchema: SystemInfoInputSchema,
		Handler: func(_ context.Context, input json.RawMessage) (string, error) {
			var in SystemInfoInput
			if err := json.Unmarshal(input, &in); err != nil {
				return "", err
			}
			switch in.InfoType {
			case "time":
				return "Current time: " + now().Format("2006-01-02 15:04:05"), nil
			case "cwd":
				cwd, err := os.Getwd()
				if err != nil {
					return "", err
				}
				return "Current directory: " + cwd, nil
			case "env":
				var b strings.Builder
				b.WriteString("Environment variables:")
				for _, name := range EnvAllowList {
					v, ok := os.LookupEnv(name)
					if !ok {
						v = "Not set"
					}
					fmt.Fprintf(&b, "\n  %s: %s", name, v)
				}
				return b.String(), nil
			default:
				return "", invalidArgs("system_info", "unknown info_type %q (want time, cwd or env)", in.InfoType)
			}
		},
	}
}
