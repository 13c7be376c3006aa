package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stleox/beeline/pkg/propagation"
)

func newHeaderCommand() *cobra.Command {
	header := &cobra.Command{
		Use:   "header",
		Short: "Encode and decode trace propagation headers",
	}
	header.AddCommand(newHeaderDecodeCommand(), newHeaderEncodeCommand())
	return header
}

func newHeaderDecodeCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "decode <header>",
		Short: "Print the propagation context carried by a header as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := propagation.Lookup(format)
			if err != nil {
				return err
			}
			pc, err := codec.Unmarshal(args[0])
			if err != nil {
				return fmt.Errorf("decode %s header: %w", format, err)
			}
			out, err := json.MarshalIndent(pc, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", propagation.FormatHoneycomb, "Header format: honeycomb, honeycomb-modern, w3c or aws")
	return cmd
}

func newHeaderEncodeCommand() *cobra.Command {
	var (
		format string
		pc     propagation.PropagationContext
		fields map[string]string
	)
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Serialize a propagation context into a header",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			codec, err := propagation.Lookup(format)
			if err != nil {
				return err
			}
			pc.TraceFields = make(map[string]interface{}, len(fields))
			for k, v := range fields {
				pc.TraceFields[k] = v
			}
			if !pc.IsValid() {
				return fmt.Errorf("--trace-id and --parent-id are required")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), codec.Marshal(pc))
			return err
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&format, "format", propagation.FormatHoneycomb, "Header format: honeycomb, honeycomb-modern, w3c or aws")
	flags.StringVar(&pc.TraceID, "trace-id", "", "Trace id")
	flags.StringVar(&pc.ParentID, "parent-id", "", "Parent span id")
	flags.StringVar(&pc.Dataset, "dataset", "", "Dataset, honeycomb classic format only")
	flags.StringToStringVar(&fields, "field", nil, "Trace field as key=value, repeatable")
	return cmd
}
