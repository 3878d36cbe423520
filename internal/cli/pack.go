package cli

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"openquest-settlement/internal/codec"
	"openquest-settlement/internal/domain"
)

// NewPackCmd turns a plain JSON dataset into its canonical envelope.
func NewPackCmd() *cobra.Command {
	var policy string
	var validate bool
	cmd := &cobra.Command{
		Use:   "pack [dataset.json]",
		Short: "Encode a JSON quiz dataset as a settlement envelope",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			envelope, err := packDataset(bytes.TrimSpace(doc), policy, validate)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", envelope)
			return err
		},
	}
	cmd.Flags().StringVar(&policy, "policy", "", "override the payout policy (tag or alias such as distributed_by_lottery)")
	cmd.Flags().BoolVar(&validate, "validate", true, "reject datasets that would fail settlement validation")
	return cmd
}

func packDataset(doc []byte, policy string, validate bool) ([]byte, error) {
	quiz, err := codec.ParseDataset(doc)
	if err != nil {
		return nil, err
	}
	if policy != "" {
		p, err := domain.ParsePolicy(policy)
		if err != nil {
			return nil, err
		}
		quiz.Policy = p
	}
	if validate {
		if err := quiz.Validate(); err != nil {
			return nil, err
		}
	}
	return codec.EncodeDataset(quiz)
}
