package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/manpen/pace26stride/internal/checker"
	"github.com/manpen/pace26stride/internal/client"
	"github.com/manpen/pace26stride/internal/pace26"
)

func newCheckCommand() *cobra.Command {
	var (
		quiet    bool
		paranoid bool
		hash     bool
		upload   bool
		server   string
	)

	cmd := &cobra.Command{
		Use:     "check <instance> [solution]",
		Aliases: []string{"c", "verify"},
		Short:   "Check a solution file",
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			instancePath := args[0]

			instRaw, err := os.ReadFile(instancePath)
			if err != nil {
				return fmt.Errorf("reading instance: %w", err)
			}
			instDoc, err := pace26.Parse(bytes.NewReader(instRaw), 0, pace26.Options{Paranoid: paranoid})
			if err != nil {
				return err
			}
			inst := checker.Instance{NumLeaves: instDoc.NumLeaves, Trees: instDoc.Trees}
			if err := checker.ValidateInstance(inst); err != nil {
				fmt.Println(checker.InvalidInstance.String())
				return err
			}

			if hash {
				printHash("instance", instRaw)
			}

			if len(args) == 1 {
				if !quiet {
					fmt.Println("instance is well-formed")
				}
				return nil
			}

			solRaw, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("reading solution: %w", err)
			}
			solDoc, err := pace26.Parse(bytes.NewReader(solRaw), instDoc.NumLeaves, pace26.Options{Paranoid: paranoid})
			if err != nil {
				fmt.Println("SyntaxError")
				return err
			}
			if hash {
				printHash("solution", solRaw)
			}

			res := checker.Check(inst, solDoc.Trees)
			fmt.Println(res.Kind.String())
			if !quiet {
				printResultDetail(res)
			}

			if upload && res.Kind == checker.Valid && instDoc.Idigest != "" {
				cl := client.NewHTTPClient(server, nil)
				cl.UploadSolution(context.Background(), instDoc.Idigest, res.CanonicalText, res.Score)
			}

			if res.Kind != checker.Valid {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Produce as little output as possible")
	cmd.Flags().BoolVarP(&paranoid, "paranoid", "p", false, "Stricter linting and all warnings become errors")
	cmd.Flags().BoolVarP(&hash, "hash", "H", false, "Compute hash of instance [and solution]")
	cmd.Flags().BoolVarP(&upload, "upload", "u", false, "Upload solution of stride instances")
	cmd.Flags().StringVarP(&server, "server", "S", "https://pace2026.imada.sdu.dk/", "Server to upload to")

	return cmd
}

func printHash(label string, data []byte) {
	sum := sha256.Sum256(data)
	fmt.Printf("%s sha256: %s\n", label, hex.EncodeToString(sum[:]))
}

func printResultDetail(res checker.Result) {
	switch res.Kind {
	case checker.Valid:
		fmt.Printf("score: %d\n", res.Score)
	case checker.Infeasible:
		switch {
		case res.LeafPartition != nil:
			fmt.Printf("leaf partition mismatch: %s\n", res.LeafPartition.String())
		case res.Malformed != nil:
			fmt.Printf("malformed component %d: %s\n", res.Malformed.Index, res.Malformed.Reason)
		case res.Agreement != nil:
			fmt.Printf("agreement violation: %s\n", res.Agreement.Witness)
		}
	case checker.InvalidInstance:
		fmt.Println(res.InstanceReason)
	}
}
