package main

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/APTrust/bagr/bagit"
	"github.com/APTrust/bagr/config"
	"github.com/APTrust/bagr/constants"
	"github.com/APTrust/bagr/tagfile"
	"github.com/APTrust/bagr/util"
	"github.com/APTrust/bagr/util/logger"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"io"
	"io/ioutil"
	"os"
	"os/signal"
	"strings"
)

// Exit codes
const (
	exitOK      = 0
	exitFatal   = 1
	exitInvalid = 2
)

// errInvalidBag means validation ran to the end and found problems.
var errInvalidBag = errors.New("bag is not valid")

// app carries the settings every subcommand needs.
type app struct {
	configFile string
	verbose    bool
	cfg        *config.Config
	log        *logging.Logger
	stdout     io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line in args and returns the exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCommand(stdout)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	if errors.Is(err, errInvalidBag) {
		return exitInvalid
	}
	fmt.Fprintln(stderr, "Error:", err.Error())
	return exitFatal
}

func newRootCommand(stdout io.Writer) *cobra.Command {
	bagr := &app{stdout: stdout}
	root := &cobra.Command{
		Use:           "bagr",
		Short:         "Create, validate and update BagIt bags",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return bagr.setup()
		},
	}
	root.PersistentFlags().StringVar(&bagr.configFile, "config", "", "path to a TOML or JSON config file")
	root.PersistentFlags().BoolVarP(&bagr.verbose, "verbose", "v", false, "log progress to stderr")
	root.AddCommand(bagr.newBagCommand(), bagr.newValidateCommand(), bagr.newRebagCommand())
	return root
}

// setup loads the config and starts the logger.
func (bagr *app) setup() error {
	cfg := config.Default()
	if bagr.configFile != "" {
		loaded, err := config.Load(bagr.configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg.ExpandFilePaths()
	if bagr.verbose {
		cfg.LogToStderr = true
		cfg.LogLevel = "DEBUG"
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		messages := make([]string, len(errs))
		for i, err := range errs {
			messages[i] = err.Error()
		}
		return fmt.Errorf("Invalid config: %s", strings.Join(messages, "; "))
	}
	log, err := logger.InitLogger(cfg)
	if err != nil {
		return err
	}
	bagr.cfg = cfg
	bagr.log = log
	return nil
}

func (bagr *app) options() bagit.Options {
	return bagit.Options{
		Sink:     logger.NewEventSink(bagr.log),
		Workers:  bagr.cfg.Workers,
		CacheDir: bagr.cfg.CacheDirectory,
		NoCache:  !bagr.cfg.UseFixityCache,
	}
}

func bagDirArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

func (bagr *app) newBagCommand() *cobra.Command {
	var algorithms []string
	var tags []string
	cmd := &cobra.Command{
		Use:   "bag [dir]",
		Short: "Write the control files for the payload under <dir>/data",
		Long: `Write bagit.txt, bag-info.txt and the manifests and tag manifests for
the payload under <dir>/data. Payload files are never modified.

Unless use_fixity_cache is off, the size, modification time and
checksums of every payload file are saved to a fixity cache for
"rebag --fast". The cache lives outside the bag, in cache_directory
(default ~/.bagr/cache).`,
		Example: `  bagr bag ./my_bag -a sha256 -a md5
  bagr bag ./my_bag -t "Source-Organization: Example University"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(algorithms) == 0 {
				algorithms = bagr.cfg.Algorithms
			}
			metadata := make([]tagfile.Tag, 0, len(bagr.cfg.BagInfo)+len(tags))
			for _, tag := range bagr.cfg.BagInfo {
				metadata = append(metadata, tagfile.Tag{Label: tag.Label, Value: tag.Value})
			}
			for _, arg := range tags {
				tag, err := parseTagArg(arg)
				if err != nil {
					return err
				}
				metadata = append(metadata, tag)
			}
			bagDir := bagDirArg(args)
			err := bagit.NewBuilder(bagr.options()).Build(cmd.Context(), bagDir, algorithms, metadata)
			if err != nil {
				return err
			}
			fmt.Fprintf(bagr.stdout, "Created bag at %s\n", bagDir)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&algorithms, "algorithm", "a", nil, "checksum algorithm (repeatable)")
	cmd.Flags().StringArrayVarP(&tags, "tag", "t", nil, "bag-info.txt tag as \"Label: value\" (repeatable)")
	return cmd
}

// parseTagArg splits "Label: value".
func parseTagArg(arg string) (tagfile.Tag, error) {
	colon := strings.Index(arg, ":")
	if colon < 0 {
		return tagfile.Tag{}, fmt.Errorf("Tag '%s' should look like 'Label: value'", arg)
	}
	return tagfile.NewTag(strings.TrimSpace(arg[:colon]), util.CleanString(arg[colon+1:]))
}

func (bagr *app) newValidateCommand() *cobra.Command {
	var algorithms []string
	var outputFile string
	cmd := &cobra.Command{
		Use:   "validate [dir]",
		Short: "Check a bag's manifests and Payload-Oxum against its files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bagDir := bagDirArg(args)
			report, err := bagit.NewValidator(bagr.options()).Validate(cmd.Context(), bagDir, algorithms)
			if err != nil {
				return err
			}
			printReport(bagr.stdout, report)
			if outputFile != "" {
				if err := dumpJson(report, outputFile); err != nil {
					return errors.Wrapf(err, "Could not write output file '%s'", outputFile)
				}
			}
			if !report.Valid() {
				return errInvalidBag
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&algorithms, "algorithm", "a", nil, "only check these algorithms (repeatable)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "also write the report to this file as JSON")
	return cmd
}

func printReport(w io.Writer, report *bagit.Report) {
	for _, warning := range report.Warnings {
		fmt.Fprintln(w, "Warning:", warning)
	}
	if report.Valid() {
		fmt.Fprintf(w, "Bag is valid (%s, Payload-Oxum %s)\n",
			strings.Join(report.Algorithms, ", "), report.Oxum)
		return
	}
	fmt.Fprintln(w, "Validation errors:")
	for _, finding := range report.Findings {
		fmt.Fprintln(w, finding)
	}
}

type jsonReport struct {
	BagDir     string   `json:"bag_dir"`
	Valid      bool     `json:"valid"`
	Algorithms []string `json:"algorithms"`
	Oxum       string   `json:"payload_oxum"`
	Findings   []string `json:"findings"`
	Warnings   []string `json:"warnings"`
}

func dumpJson(report *bagit.Report, outputFile string) error {
	out := jsonReport{
		BagDir:     report.BagDir,
		Valid:      report.Valid(),
		Algorithms: report.Algorithms,
		Oxum:       report.Oxum.String(),
		Findings:   make([]string, 0, len(report.Findings)),
		Warnings:   make([]string, 0, len(report.Warnings)),
	}
	for _, finding := range report.Findings {
		out.Findings = append(out.Findings, finding.String())
	}
	for _, warning := range report.Warnings {
		out.Warnings = append(out.Warnings, warning.String())
	}
	jsonData, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return ioutil.WriteFile(outputFile, jsonData, 0644)
}

func (bagr *app) newRebagCommand() *cobra.Command {
	var fast bool
	cmd := &cobra.Command{
		Use:   "rebag [dir]",
		Short: "Rewrite a bag's manifests after its payload changed",
		Long: `Rewrite a bag's manifests, tag manifests and Payload-Oxum after files
under data/ were added, changed or removed. The bag keeps its
algorithms and its other bag-info.txt tags.

With --fast, files whose size and modification time match the fixity
cache keep their old checksums without being read. A file changed in
place with its size and modification time preserved will not be
noticed. The fixity cache is a file in cache_directory (default
~/.bagr/cache), outside the bag. With an empty cache_directory it is
written next to the bag as <dir>.bagdb.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := bagr.cfg.UpdateMode
			if fast {
				mode = constants.UpdateFast
			}
			bagDir := bagDirArg(args)
			if err := bagit.NewUpdater(bagr.options()).Update(cmd.Context(), bagDir, mode); err != nil {
				return err
			}
			fmt.Fprintf(bagr.stdout, "Updated bag at %s\n", bagDir)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fast, "fast", false, "reuse checksums of files the fixity cache says are unchanged")
	return cmd
}
