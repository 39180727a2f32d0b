// Command processor runs the pipeline once over a triplet of raw
// instrument exports and writes the rendered workbooks to the output
// directory. It is the headless counterpart to the web service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"nbslab/internal/app"
	"nbslab/internal/config"
	"nbslab/internal/services"
	"nbslab/pkg/contracts"
)

func main() {
	var (
		patientCount = flag.Int("patients", 0, "declared patient count, 0 to take it from the files")
		uploadedBy   = flag.String("uploaded-by", "", "operator name recorded with the run")
		showVersion  = flag.Bool("version", false, "print the version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(contracts.GetVersionString())
		return
	}

	if flag.NArg() != 3 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <aa-file> <ac-file> <ac-ext-file>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	application, err := app.NewApplication(cfg)
	if err != nil {
		slog.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	uploads, err := openUploads(flag.Args())
	if err != nil {
		slog.Error("failed to open input files", slog.String("error", err.Error()))
		os.Exit(1)
	}

	outcome, err := application.Reports.Process(context.Background(), uploads, *patientCount, *uploadedBy)
	if err != nil {
		slog.Error("processing failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	fmt.Printf("run %s complete: %d patients, %d compounds\n", outcome.RunID, outcome.PatientCount, outcome.CompoundCount)
	fmt.Printf("aggregate: %s\n", outcome.AggregatePath)
	fmt.Printf("bundle:    %s\n", outcome.BundlePath)
	for _, f := range outcome.ArtifactFailures {
		fmt.Fprintf(os.Stderr, "patient report failed for %s: %s\n", f.Subject, f.Error)
	}
}

// openUploads opens each input path and wraps it for the pipeline.
// Files stay open for the lifetime of the process run.
func openUploads(paths []string) ([]services.Upload, error) {
	uploads := make([]services.Upload, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, err
		}
		uploads = append(uploads, services.Upload{
			Name:   filepath.Base(p),
			Size:   info.Size(),
			Reader: f,
		})
	}
	return uploads, nil
}
