package main

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/property-report/internal/render"
	"github.com/sells-group/property-report/internal/report"
)

type reportOptions struct {
	address string
	county  string
	set     map[string]string
	prefer  map[string]string
	image   string
	format  string
	output  string
}

var reportOpts reportOptions

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Build and render a report for one address",
	Example: `  property-report report --address "1234 Main St, Houston, TX 77002"
  property-report report --address "..." --county none --set beds=4 --prefer assessedValue=api --format markdown`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("cli"); err != nil {
			return err
		}
		svc, err := initService(cfg)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if reportOpts.output != "" {
			f, err := os.Create(reportOpts.output)
			if err != nil {
				return eris.Wrapf(err, "create %s", reportOpts.output)
			}
			defer f.Close() //nolint:errcheck
			out = f
		}
		return runReport(cmd.Context(), svc, reportOpts, out)
	},
}

func runReport(ctx context.Context, svc *report.Service, o reportOptions, w io.Writer) error {
	renderer, err := render.New(o.format)
	if err != nil {
		return err
	}
	image, err := imageReference(o.image)
	if err != nil {
		return err
	}

	rep, _, err := svc.Build(ctx, report.Request{
		Address:       o.address,
		County:        o.county,
		ManualValues:  o.set,
		Preferences:   o.prefer,
		UploadedImage: image,
	})
	if err != nil {
		return err
	}
	return render.Write(w, renderer, rep)
}

// imageReference passes URLs and data URLs through and inlines local files
// as data URLs.
func imageReference(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") || strings.Contains(ref, "://") {
		return ref, nil
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return "", eris.Wrapf(err, "read image %s", ref)
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", eris.Errorf("%s is not an image (%s)", ref, mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func init() {
	f := reportCmd.Flags()
	f.StringVar(&reportOpts.address, "address", "", "property address (required)")
	f.StringVar(&reportOpts.county, "county", "auto", "county lookup: auto, none, harris, fortbend")
	f.StringToStringVar(&reportOpts.set, "set", nil, "manual value, field=value (repeatable)")
	f.StringToStringVar(&reportOpts.prefer, "prefer", nil, "source preference, field=auto|api|county (repeatable)")
	f.StringVar(&reportOpts.image, "image", "", "image URL, data URL or local file")
	f.StringVar(&reportOpts.format, "format", "text", "output format: "+strings.Join(render.Formats(), ", "))
	f.StringVarP(&reportOpts.output, "output", "o", "", "write to file instead of stdout")
	_ = reportCmd.MarkFlagRequired("address")
	rootCmd.AddCommand(reportCmd)
}
