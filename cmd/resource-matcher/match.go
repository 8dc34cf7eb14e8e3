package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"resource-matcher/internal/common/config"
	"resource-matcher/internal/matching"
	"resource-matcher/internal/matching/assembler"
	"resource-matcher/internal/models"
)

var (
	matchProfilePath string
	matchCatalogPath string
	matchCategories  string
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match a single profile and print the response JSON",
	Long: "Reads a match request (the POST /match body) from --profile, or stdin when it is \"-\", " +
		"runs it against the configured catalog or a JSON listings file and prints the response.",
	Example: "  resource-matcher match --profile profile.json --catalog listings.json --categories grant,sba",
	RunE:    runMatch,
}

func init() {
	matchCmd.Flags().StringVar(&matchProfilePath, "profile", "", "path to the match request JSON (- for stdin)")
	matchCmd.Flags().StringVar(&matchCatalogPath, "catalog", "", "JSON listings file to match against instead of the configured backend")
	matchCmd.Flags().StringVar(&matchCategories, "categories", "", "comma-separated categories (overrides the request)")
	_ = matchCmd.MarkFlagRequired("profile")
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	raw, err := readProfile(matchProfilePath, cmd.InOrStdin())
	if err != nil {
		return err
	}
	raw, err = withCategories(raw, matchCategories)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		if matchCatalogPath == "" {
			return err
		}
		cfg = config.Default()
	}
	if matchCatalogPath != "" {
		cfg.Catalog.Backend = config.BackendFile
		cfg.Catalog.FilePath = matchCatalogPath
	}

	// stdout carries the response, so logs go to stderr.
	log := newLogger(cfg, "stderr")

	ctx := context.Background()
	a, err := buildApp(ctx, cfg, log, false)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, matchErr := a.service.MatchRaw(ctx, raw, matching.TransportCLI)
	if matchErr != nil {
		resp = assembler.Failure(matchErr)
	}
	if err := writeResponse(cmd.OutOrStdout(), resp); err != nil {
		return err
	}
	return matchErr
}

func readProfile(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	return data, nil
}

// withCategories replaces the request's categories with a comma-separated
// list. The body is otherwise passed through untouched for validation.
func withCategories(raw []byte, categories string) ([]byte, error) {
	if strings.TrimSpace(categories) == "" {
		return raw, nil
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("profile is not a JSON object: %w", err)
	}
	if body == nil {
		body = map[string]json.RawMessage{}
	}

	cats := make([]string, 0)
	for _, c := range strings.Split(categories, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cats = append(cats, c)
		}
	}
	encoded, err := json.Marshal(cats)
	if err != nil {
		return nil, err
	}
	body["categories"] = encoded
	return json.Marshal(body)
}

func writeResponse(w io.Writer, resp *models.MatchResponse) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
