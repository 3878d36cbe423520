package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"openquest-settlement/internal/codec"
	"openquest-settlement/internal/settlement"
)

// NewSettleCmd settles one dataset envelope offline.
func NewSettleCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "settle [envelope-file]",
		Short: "Settle a dataset envelope read from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			return settleEnvelope(bytes.TrimSpace(in), cmd.OutOrStdout(), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the record as JSON instead of an envelope")
	return cmd
}

func settleEnvelope(envelope []byte, out io.Writer, asJSON bool) error {
	quiz, err := codec.DecodeDataset(envelope)
	if err != nil {
		return err
	}
	record, err := settlement.Settle(quiz)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	}
	encoded, err := codec.EncodeRecord(record)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s\n", encoded)
	return err
}

// readInput returns the named file, or stdin when no file or "-" is given.
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}
