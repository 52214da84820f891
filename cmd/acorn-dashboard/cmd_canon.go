// cmd_canon.go — команда canon: каноническая форма query string представления.
package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/amitch35/AcornArranger-next-sub000/internal/domain/filter"
)

// canonOutput — результат canon --json.
type canonOutput struct {
	Entity  string         `json:"entity"`
	Query   string         `json:"query"`
	Filters filter.Partial `json:"filters"`
}

func runCanon(cmd *cobra.Command, args []string) error {
	schema, err := lookupSchema()
	if err != nil {
		return err
	}
	allow, err := parseAllow(allowList)
	if err != nil {
		return err
	}

	raw := ""
	if len(args) == 1 {
		raw = rawQuery(args[0])
	}
	return writeCanon(cmd.OutOrStdout(), schema, allow, raw, asJSON)
}

// writeCanon декодирует raw по схеме и печатает каноническую query.
func writeCanon(w io.Writer, schema *filter.Schema, allow filter.Allowlists, raw string, jsonOut bool) error {
	state := filter.Validate(filter.Decode(filter.ParseQuery(raw), schema, allow), schema)

	if !jsonOut {
		_, err := fmt.Fprintln(w, state.Encode())
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(canonOutput{
		Entity:  schema.Entity(),
		Query:   state.Encode(),
		Filters: state.NonDefault(),
	})
}

// lookupSchema возвращает схему сущности из --entity.
func lookupSchema() (*filter.Schema, error) {
	if entity == "" {
		return nil, fmt.Errorf("--entity обязателен, доступные: %v", filter.DefaultRegistry().Entities())
	}
	return filter.DefaultRegistry().Get(entity)
}
