package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pharmatrace/internal/errs"
	"pharmatrace/internal/usecase/hierarchy"
)

func printJSON(cmd *cobra.Command, value any) error {
	out, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errs.Wrap(err, "encode output")
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(out)); err != nil {
		return errs.Wrap(err, "write output")
	}
	return nil
}

func actorFromFlags(cmd *cobra.Command) hierarchy.Actor {
	id, _ := cmd.Flags().GetUint64("actor-id")
	kind, _ := cmd.Flags().GetString("actor-type")
	return hierarchy.Actor{ID: id, Type: strings.TrimSpace(kind)}
}

// parseIDs reads a comma separated id list such as "1,2,3".
func parseIDs(values []string) ([]uint64, error) {
	ids := make([]uint64, 0, len(values))
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseUint(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid id %q", part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}
