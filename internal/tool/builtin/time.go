package builtin

import (
	"encoding/json"
	"time"

	"github.com/fuxihub/fuxiquant-go/internal/tool"
)

func currentTimeTool() tool.Tool {
	return tool.Tool{
		Name:        "get_current_time",
		Description: "Returns the current time, optionally in a given timezone",
		Parameters: tool.ObjectSchema(map[string]tool.JSONSchema{
			"timezone": tool.StringProp("IANA zone name, e.g. Asia/Shanghai, UTC, America/New_York. Defaults to local time."),
			"format":   tool.StringProp("Go reference-time layout, e.g. 2006-01-02 15:04:05. Defaults to RFC3339."),
		}),
	}
}

type currentTimeArgs struct {
	Timezone string `json:"timezone"`
	Format   string `json:"format"`
}

type currentTimeResult struct {
	CurrentTime   string `json:"current_time"`
	Timezone      string `json:"timezone"`
	UnixTimestamp int64  `json:"unix_timestamp"`
}

// executeGetCurrentTime falls back to local time when timezone is
// absent or unparseable, matching execute_get_current_time's behavior.
func executeGetCurrentTime(raw json.RawMessage) (interface{}, error) {
	var args currentTimeArgs
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, err
		}
	}
	format := args.Format
	if format == "" {
		format = time.RFC3339
	}

	now := time.Now()
	unix := now.Unix()

	if args.Timezone == "" {
		local := now.Local()
		return currentTimeResult{
			CurrentTime:   local.Format(format),
			Timezone:      "Local",
			UnixTimestamp: unix,
		}, nil
	}

	loc, err := time.LoadLocation(args.Timezone)
	if err != nil {
		local := now.Local()
		return currentTimeResult{
			CurrentTime:   local.Format(format),
			Timezone:      "Local (invalid timezone: " + args.Timezone + ")",
			UnixTimestamp: unix,
		}, nil
	}

	zoned := now.In(loc)
	return currentTimeResult{
		CurrentTime:   zoned.Format(format),
		Timezone:      args.Timezone,
		UnixTimestamp: unix,
	}, nil
}
