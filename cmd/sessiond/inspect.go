package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/clustersession/pkg/session"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Print a stored session as JSON",
	Long: `Reads a session from the configured store and prints its replicated
state. The memory backend lives inside a serve process, so inspect is only
useful with redis or postgres.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadAppConfig()
		if err != nil {
			return err
		}

		b, err := openBackend(cmd.Context(), app, newLogger(app))
		if err != nil {
			return err
		}
		defer b.close()

		sess, err := b.cache.Get(cmd.Context(), args[0])
		if errors.Is(err, session.ErrSessionNotFound) {
			return fmt.Errorf("session %q not found", args[0])
		}
		if err != nil {
			return err
		}

		return printSession(cmd, sess)
	},
}

func printSession(cmd *cobra.Command, sess *session.Session) error {
	data, err := session.JSONCodec{}.Encode(sess)
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err = cmd.OutOrStdout().Write(out.Bytes())
	return err
}
