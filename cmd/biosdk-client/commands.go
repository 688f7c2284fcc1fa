package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/compresr/biosdk-client/biometrics"
	"github.com/compresr/biosdk-client/biosdk"
)

// Version is set at build time via ldflags
var Version = "dev"

// SampleArgs are shared by the single-sample capability commands.
type SampleArgs struct {
	Sample   string            `arg:"" type:"existingfile" help:"BiometricRecord JSON file."`
	Modality []string          `short:"m" help:"Modalities to process (comma-separated)." placeholder:"FINGER,FACE"`
	Flag     map[string]string `short:"f" help:"Capability flag, repeatable (e.g. FINGER.format=iso)." placeholder:"KEY=VALUE"`
}

// InitCmd initializes the SDK services.
type InitCmd struct{}

func (c *InitCmd) Run(a *app) error {
	ctx, cancel := signalContext()
	defer cancel()

	client, err := biosdk.New(a.cfg, biosdk.WithLogger(a.logger))
	if err != nil {
		return err
	}
	info, err := client.Init(ctx, a.cli.Param)
	if err != nil {
		return err
	}
	return printJSON(a.out, info)
}

// CheckQualityCmd scores a sample.
type CheckQualityCmd struct {
	SampleArgs
}

func (c *CheckQualityCmd) Run(a *app) error {
	return withClient(a, c.SampleArgs, func(ctx context.Context, client *biosdk.Client, sample *biometrics.BiometricRecord, modalities []biometrics.Modality) (any, error) {
		return client.CheckQuality(ctx, sample, modalities, c.Flag)
	})
}

// MatchCmd matches a sample against gallery records.
type MatchCmd struct {
	SampleArgs
	Gallery []string `short:"g" type:"existingfile" required:"" help:"Gallery BiometricRecord JSON file, repeatable."`
}

func (c *MatchCmd) Run(a *app) error {
	gallery := make([]*biometrics.BiometricRecord, 0, len(c.Gallery))
	for _, path := range c.Gallery {
		record, err := readRecord(path)
		if err != nil {
			return err
		}
		gallery = append(gallery, record)
	}
	return withClient(a, c.SampleArgs, func(ctx context.Context, client *biosdk.Client, sample *biometrics.BiometricRecord, modalities []biometrics.Modality) (any, error) {
		return client.Match(ctx, sample, gallery, modalities, c.Flag)
	})
}

// ExtractTemplateCmd extracts templates.
type ExtractTemplateCmd struct {
	SampleArgs
}

func (c *ExtractTemplateCmd) Run(a *app) error {
	return withClient(a, c.SampleArgs, func(ctx context.Context, client *biosdk.Client, sample *biometrics.BiometricRecord, modalities []biometrics.Modality) (any, error) {
		return client.ExtractTemplate(ctx, sample, modalities, c.Flag)
	})
}

// SegmentCmd segments a sample.
type SegmentCmd struct {
	SampleArgs
}

func (c *SegmentCmd) Run(a *app) error {
	return withClient(a, c.SampleArgs, func(ctx context.Context, client *biosdk.Client, sample *biometrics.BiometricRecord, modalities []biometrics.Modality) (any, error) {
		return client.Segment(ctx, sample, modalities, c.Flag)
	})
}

// ConvertFormatCmd converts a sample.
type ConvertFormatCmd struct {
	Sample      string            `arg:"" type:"existingfile" help:"BiometricRecord JSON file."`
	Modality    []string          `short:"m" help:"Modalities to convert (comma-separated)." placeholder:"FINGER,FACE"`
	Source      string            `help:"Source format." placeholder:"FORMAT"`
	Target      string            `help:"Target format." placeholder:"FORMAT"`
	SourceParam map[string]string `help:"Source format parameter, repeatable." placeholder:"KEY=VALUE"`
	TargetParam map[string]string `help:"Target format parameter, repeatable." placeholder:"KEY=VALUE"`
	Legacy      bool              `help:"Use the legacy operation that returns only the converted record."`
}

func (c *ConvertFormatCmd) Run(a *app) error {
	args := SampleArgs{Sample: c.Sample, Modality: c.Modality}
	return withClient(a, args, func(ctx context.Context, client *biosdk.Client, sample *biometrics.BiometricRecord, modalities []biometrics.Modality) (any, error) {
		req := biosdk.ConvertFormatRequest{
			Sample:       sample,
			SourceFormat: c.Source,
			TargetFormat: c.Target,
			SourceParams: c.SourceParam,
			TargetParams: c.TargetParam,
			Modalities:   modalities,
		}
		if c.Legacy {
			return client.ConvertFormat(ctx, req)
		}
		return client.ConvertFormatV2(ctx, req)
	})
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(a *app) error {
	version := Version
	if version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
	}
	_, err := fmt.Fprintf(a.out, "biosdk-client %s\n", version)
	return err
}

type capabilityFunc func(ctx context.Context, client *biosdk.Client, sample *biometrics.BiometricRecord, modalities []biometrics.Modality) (any, error)

// withClient reads the sample, initializes a client from the global flags, runs
// fn and prints its result.
func withClient(a *app, args SampleArgs, fn capabilityFunc) error {
	sample, err := readRecord(args.Sample)
	if err != nil {
		return err
	}
	modalities, err := parseModalities(args.Modality)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	client, err := biosdk.New(a.cfg, biosdk.WithLogger(a.logger))
	if err != nil {
		return err
	}
	if _, err := client.Init(ctx, a.cli.Param); err != nil {
		return err
	}

	result, err := fn(ctx, client, sample, modalities)
	if err != nil {
		return err
	}
	return printJSON(a.out, result)
}

func readRecord(path string) (*biometrics.BiometricRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var record biometrics.BiometricRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &record, nil
}

func parseModalities(names []string) ([]biometrics.Modality, error) {
	out := make([]biometrics.Modality, 0, len(names))
	for _, name := range names {
		m, ok := biometrics.ParseModality(name)
		if !ok {
			return nil, fmt.Errorf("unknown modality %q", name)
		}
		out = append(out, m)
	}
	return out, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
