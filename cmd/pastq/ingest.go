package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/pastq/internal/domain"
)

var (
	flagCollection string
	ingestFile     string
	deleteIDs      []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load a JSON array of question records into a collection",
	Long: `Load a JSON array of question records. Each record needs a "question"
string; every other key (subject, year_bs, year_ad, marks, unit, topic, ...)
is kept as filterable metadata. Records without an "id" get a random one.
Use --file - to read from stdin.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete questions by id",
	Args:  cobra.NoArgs,
	RunE:  runDelete,
}

var dropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Drop a collection and every question in it",
	Args:  cobra.NoArgs,
	RunE:  runDrop,
}

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List question collections",
	Args:  cobra.NoArgs,
	RunE:  runCollections,
}

func init() {
	for _, c := range []*cobra.Command{ingestCmd, deleteCmd, dropCmd} {
		c.Flags().StringVarP(&flagCollection, "collection", "c", "", "collection name (default: store.collection)")
	}
	ingestCmd.Flags().StringVarP(&ingestFile, "file", "f", "", "dataset file (JSON array), - for stdin")
	_ = ingestCmd.MarkFlagRequired("file")
	deleteCmd.Flags().StringSliceVar(&deleteIDs, "ids", nil, "comma-separated question ids")
	_ = deleteCmd.MarkFlagRequired("ids")

	rootCmd.AddCommand(ingestCmd, deleteCmd, dropCmd, collectionsCmd)
}

func collectionName(a *app) string {
	if flagCollection != "" {
		return flagCollection
	}
	return a.cfg.Store.Collection
}

func readDataset(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return data, nil
}

func runIngest(cmd *cobra.Command, _ []string) error {
	data, err := readDataset(cmd, ingestFile)
	if err != nil {
		return err
	}

	ctx, a, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.ingest.Load(ctx, collectionName(a), data)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrEmptyDataset) {
			return fmt.Errorf("dataset rejected: %w", err)
		}
		return fmt.Errorf("ingest: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

func runDelete(cmd *cobra.Command, _ []string) error {
	ctx, a, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	collection := collectionName(a)
	if err := a.ingest.Delete(ctx, collection, deleteIDs); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %d question(s) from %s\n", len(deleteIDs), collection)
	return nil
}

func runDrop(cmd *cobra.Command, _ []string) error {
	ctx, a, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	collection := collectionName(a)
	if err := a.ingest.Drop(ctx, collection); err != nil {
		return fmt.Errorf("drop: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "dropped %s\n", collection)
	return nil
}

func runCollections(cmd *cobra.Command, _ []string) error {
	ctx, a, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	names, err := a.ingest.Collections(ctx)
	if err != nil {
		return fmt.Errorf("collections: %w", err)
	}
	for _, n := range names {
		fmt.Fprintln(cmd.OutOrStdout(), n)
	}
	return nil
}
