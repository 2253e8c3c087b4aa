package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/dasmlab/pagetrans/pkg/pipeline"
	"github.com/dasmlab/pagetrans/pkg/service"
	"github.com/sirupsen/logrus"
)

type options struct {
	serverAddr string
	input      string
	target     string
	startPage  int
	endPage    int
	download   bool
	prefix     string
	timeout    time.Duration
	languages  bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var o options

	cmd := &cobra.Command{
		Use:          "pagetrans-testclient",
		Short:        "Send one translation request to a pagetrans gRPC server",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.serverAddr, "addr", "localhost:50051", "gRPC server address")
	f.StringVar(&o.input, "input", "", "File path, file:// URI or literal text to translate")
	f.StringVar(&o.target, "target", pipeline.DefaultTargetLanguage, "Target language name or code (e.g. german, de)")
	f.IntVar(&o.startPage, "start", 0, "First PDF page (0-based)")
	f.IntVar(&o.endPage, "end", 0, "Last PDF page (inclusive)")
	f.BoolVar(&o.download, "download", false, "Save each translated page under Pages/")
	f.StringVar(&o.prefix, "prefix", "", "File name prefix for saved pages")
	f.DurationVar(&o.timeout, "timeout", 10*time.Minute, "Request timeout")
	f.BoolVar(&o.languages, "languages", false, "List the language menu and exit")

	return cmd
}

func run(ctx context.Context, o options) error {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	conn, err := grpc.NewClient(o.serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		logger.WithError(err).Error("Failed to connect to server")
		return err
	}
	defer conn.Close()

	client := service.NewClient(conn)

	if o.languages {
		out, err := client.ListLanguages(ctx)
		if err != nil {
			logger.WithError(err).Error("ListLanguages failed")
			return err
		}
		for _, v := range out.GetFields()["languages"].GetListValue().GetValues() {
			lang := v.GetStructValue().GetFields()
			fmt.Printf("%-10s %s\n", lang["name"].GetStringValue(), lang["code"].GetStringValue())
		}
		return nil
	}

	req, err := service.RequestToStruct(pipeline.Request{
		Input:          o.input,
		StartPage:      o.startPage,
		EndPage:        o.endPage,
		TargetLanguage: o.target,
		Download:       o.download,
		Prefix:         o.prefix,
	})
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"server":      o.serverAddr,
		"target_lang": o.target,
		"start_page":  o.startPage,
		"end_page":    o.endPage,
	}).Info("Sending translation request...")

	startTime := time.Now()
	resp, err := client.Translate(ctx, req)
	if err != nil {
		logger.WithError(err).Error("Translation failed")
		return err
	}
	f := resp.GetFields()

	separator := strings.Repeat("=", 80)
	fmt.Println(separator)
	fmt.Printf("Run: %s  Source: %s  Target: %s\n",
		f["run_id"].GetStringValue(), f["source"].GetStringValue(), f["target_language"].GetStringValue())
	fmt.Println(separator)
	fmt.Println(f["text"].GetStringValue())

	if files := f["files"].GetListValue().GetValues(); len(files) > 0 {
		fmt.Println("Saved files:")
		for _, file := range files {
			fmt.Println("  " + file.GetStringValue())
		}
	}

	entry := logger.WithFields(logrus.Fields{
		"duration_seconds": time.Since(startTime).Seconds(),
		"ok":               f["ok"].GetBoolValue(),
	})
	if !f["ok"].GetBoolValue() {
		entry.WithField("error_kind", f["error_kind"].GetStringValue()).Error("Translation was not successful")
		return errors.New(f["error_message"].GetStringValue())
	}
	entry.Info("Translation completed successfully")
	return nil
}
