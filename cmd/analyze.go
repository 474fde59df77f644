package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/labelsense/labelsense/internal/model"
	"github.com/labelsense/labelsense/internal/store"
)

var (
	analyzeUser        string
	analyzeTitle       string
	analyzeLanguage    string
	analyzeSave        bool
	analyzeConcurrency int
	analyzeAllergies   []string
	analyzeConditions  []string
	analyzePreferences []string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file...]",
	Short: "Analyze label text from files or stdin",
	Long:  "Runs the full analysis pipeline on OCR'd label text. With no file arguments the text is read from stdin. Multiple files are processed concurrently.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		profile, err := resolveProfile(ctx, env)
		if err != nil {
			return err
		}

		language := analyzeLanguage
		if language == "" {
			language = cfg.Analysis.Language
		}

		if len(args) == 0 {
			raw, err := io.ReadAll(os.Stdin)
			if err != nil {
				return eris.Wrap(err, "read stdin")
			}
			return analyzeOne(ctx, env, strings.TrimSpace(string(raw)), analyzeTitle, profile, language, os.Stdout)
		}

		// Fan out over files; stdout writes are serialized.
		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(analyzeConcurrency)
		for _, path := range args {
			g.Go(func() error {
				raw, err := os.ReadFile(path)
				if err != nil {
					return eris.Wrapf(err, "read %s", path)
				}
				title := analyzeTitle
				if title == "" {
					title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				}
				var buf strings.Builder
				if err := analyzeOne(gctx, env, strings.TrimSpace(string(raw)), title, profile, language, &buf); err != nil {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				_, err = io.WriteString(os.Stdout, buf.String())
				return err
			})
		}
		return g.Wait()
	},
}

// analyzeOne runs the pipeline on one label text, optionally persists the
// scan, and writes the result as indented JSON.
func analyzeOne(ctx context.Context, env *appEnv, rawText, title string, profile model.HealthProfile, language string, out io.Writer) error {
	if rawText == "" {
		return eris.New("label text is empty")
	}

	result, err := env.Pipeline.Analyze(ctx, rawText, profile, language)
	if err != nil {
		return eris.Wrap(err, "analyze")
	}

	if analyzeSave {
		if analyzeUser == "" {
			return eris.New("--save requires --user")
		}
		detail, err := env.Store.SaveAnalysis(ctx, model.Scan{
			UserID:      analyzeUser,
			ProductName: title,
			RawText:     rawText,
		}, result)
		if err != nil {
			return eris.Wrap(err, "save scan")
		}
		zap.L().Info("scan saved", zap.String("scan_id", detail.Scan.ID))
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// resolveProfile loads the stored profile for --user (missing is fine) and
// merges in any ad-hoc flag values.
func resolveProfile(ctx context.Context, env *appEnv) (model.HealthProfile, error) {
	var profile model.HealthProfile
	if analyzeUser != "" {
		stored, err := env.Store.GetHealthProfile(ctx, analyzeUser)
		switch {
		case err == nil:
			profile = *stored
		case eris.Is(err, store.ErrNotFound):
			zap.L().Debug("no stored profile", zap.String("user_id", analyzeUser))
		default:
			return model.HealthProfile{}, eris.Wrap(err, "load profile")
		}
	}
	profile.Allergies = append(profile.Allergies, analyzeAllergies...)
	profile.Conditions = append(profile.Conditions, analyzeConditions...)
	profile.DietaryPreferences = append(profile.DietaryPreferences, analyzePreferences...)
	return profile, nil
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeUser, "user", "", "user ID whose stored health profile to apply")
	analyzeCmd.Flags().StringVar(&analyzeTitle, "title", "", "product name for the saved scan (default: file name)")
	analyzeCmd.Flags().StringVar(&analyzeLanguage, "language", "", "output language (default from config)")
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", false, "persist the result as a scan")
	analyzeCmd.Flags().IntVar(&analyzeConcurrency, "concurrency", 4, "max files analyzed in parallel")
	analyzeCmd.Flags().StringSliceVar(&analyzeAllergies, "allergy", nil, "ad-hoc allergy (repeatable)")
	analyzeCmd.Flags().StringSliceVar(&analyzeConditions, "condition", nil, "ad-hoc health condition (repeatable)")
	analyzeCmd.Flags().StringSliceVar(&analyzePreferences, "preference", nil, "ad-hoc dietary preference (repeatable)")
	rootCmd.AddCommand(analyzeCmd)
}
