package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/siqueiraa/deschemaer/pkg/cdc"
)

var (
	decodeKey      string
	decodeValue    string
	decodeFramed   bool
	decodeTrailing bool
)

var decodeCmd = &cobra.Command{
	Use:     "decode",
	Short:   "Transform one message given as base64 key and value",
	Example: `  deschemaer decode --key CkdyYW5kAA== --value AhRHcmVhdCBzdGF5AAIBAgo=`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if decodeKey == "" || decodeValue == "" {
			return errors.New("both --key and --value are required")
		}
		var opts []cdc.Option
		if decodeFramed {
			opts = append(opts, cdc.WithFraming())
		}
		if decodeTrailing {
			opts = append(opts, cdc.WithTrailingBytes())
		}
		tr, err := cdc.NewTransformer(defaultCatalog(), opts...)
		if err != nil {
			return err
		}
		doc, err := tr.Transform(cdc.Base64(decodeKey), cdc.Base64(decodeValue))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), doc)
		return err
	},
}

func init() {
	decodeCmd.Flags().StringVar(&decodeKey, "key", "", "base64-encoded Avro key")
	decodeCmd.Flags().StringVar(&decodeValue, "value", "", "base64-encoded Avro value")
	decodeCmd.Flags().BoolVar(&decodeFramed, "framed", false, "payloads carry the Confluent magic byte and schema id")
	decodeCmd.Flags().BoolVar(&decodeTrailing, "allow-trailing", false, "ignore bytes after the last field")
}
