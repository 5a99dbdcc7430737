// Package main provides the readaloud CLI, which reads markdown documents
// aloud block-by-block through a local speech synthesizer.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"readaloud/internal/document"
	"readaloud/tts"
	"readaloud/tts/engines/espeak"
	"readaloud/tts/engines/mock"
	"readaloud/tts/text"
	"readaloud/tts/voices"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile  string
	engineName  string
	voiceID     string
	rate        float64
	contextName string
	fromBlock   int
	toBlock     int
	listVoices  bool
	watchFile   bool
	debug       bool

	keyword = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"}).Render

	paragraph = lipgloss.NewStyle().Width(78).Padding(0, 0, 0, 2).Render

	rootCmd = &cobra.Command{
		Use:   "readaloud [SOURCE]",
		Short: "Read markdown aloud, block by block",
		Long: paragraph(
			fmt.Sprintf("\nRead markdown documents %s. Text is normalized for speech and abbreviations expand according to the detected document context.", keyword("aloud")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

// envOverrides are environment-variable fallbacks for the main knobs.
type envOverrides struct {
	Engine  string  `env:"READALOUD_ENGINE"`
	Voice   string  `env:"READALOUD_VOICE"`
	Rate    float64 `env:"READALOUD_RATE"`
	Context string  `env:"READALOUD_CONTEXT"`
}

// source provides a readable markdown source.
type source struct {
	reader io.ReadCloser
	path   string // empty when reading stdin
}

// sourceFromArg opens a markdown source: "-" or a pipe reads stdin,
// anything else is a file path.
func sourceFromArg(arg string) (*source, error) {
	if arg == "" || arg == "-" {
		return &source{reader: os.Stdin}, nil
	}

	r, err := os.Open(arg)
	if err != nil {
		return nil, fmt.Errorf("unable to open file: %w", err)
	}
	p, err := filepath.Abs(arg)
	if err != nil {
		return nil, fmt.Errorf("unable to get absolute path: %w", err)
	}
	return &source{r, p}, nil
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to stat stdin: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

func validateOptions(cmd *cobra.Command) error {
	// grab config values from Viper
	if !cmd.Flags().Changed("engine") {
		engineName = viper.GetString("engine")
	}
	if !cmd.Flags().Changed("voice") {
		voiceID = viper.GetString("voice")
	}
	if !cmd.Flags().Changed("rate") {
		rate = viper.GetFloat64("rate")
	}
	if !cmd.Flags().Changed("context") {
		contextName = viper.GetString("context")
	}

	// environment overrides beat the config file but not explicit flags
	overrides, err := env.ParseAs[envOverrides]()
	if err != nil {
		return fmt.Errorf("error parsing environment: %w", err)
	}
	if overrides.Engine != "" && !cmd.Flags().Changed("engine") {
		engineName = overrides.Engine
	}
	if overrides.Voice != "" && !cmd.Flags().Changed("voice") {
		voiceID = overrides.Voice
	}
	if overrides.Rate != 0 && !cmd.Flags().Changed("rate") {
		rate = overrides.Rate
	}
	if overrides.Context != "" && !cmd.Flags().Changed("context") {
		contextName = overrides.Context
	}

	switch engineName {
	case "espeak", "mock":
	default:
		return fmt.Errorf("unknown engine %q: use espeak or mock", engineName)
	}

	if debug {
		log.SetLevel(log.DebugLevel)
	}
	return nil
}

func execute(cmd *cobra.Command, args []string) error {
	arg := ""
	if len(args) == 1 {
		arg = args[0]
	}

	if arg == "" {
		if piped, err := stdinIsPipe(); err != nil {
			return err
		} else if !piped {
			return errors.New("missing markdown source")
		}
	}

	src, err := sourceFromArg(arg)
	if err != nil {
		return err
	}
	defer src.reader.Close() //nolint:errcheck

	b, err := io.ReadAll(src.reader)
	if err != nil {
		return fmt.Errorf("unable to read source: %w", err)
	}

	return run(src.path, b)
}

// buildSynthesizer selects the synthesizer implementation. The mock engine
// speaks nothing and completes instantly, useful for dry runs.
func buildSynthesizer() tts.Synthesizer {
	if engineName == "mock" {
		return mock.New().AutoComplete()
	}
	return espeak.New(espeak.Config{
		Binary:  viper.GetString("espeak.binary"),
		BaseWPM: viper.GetInt("espeak.wpm"),
	})
}

func run(path string, markdown []byte) error {
	synth := buildSynthesizer()
	engine := tts.NewEngine(synth)

	ready := make(chan []voices.Entry, 1)
	finished := make(chan struct{}, 1)
	failures := make(chan error, 1)

	engine.OnReady(func(catalog []voices.Entry) { ready <- catalog })
	engine.OnBlockStarted(func(id int) { log.Info("speaking", "block", id) })
	engine.OnBlockCompleted(func(id int) { log.Debug("finished", "block", id) })
	engine.OnPlaybackCompleted(func() { finished <- struct{}{} })
	engine.OnError(func(err error) { failures <- err })

	if err := engine.Initialize(); err != nil {
		return err
	}
	defer engine.Close() //nolint:errcheck

	var catalog []voices.Entry
	select {
	case catalog = <-ready:
	case err := <-failures:
		return err
	}

	if listVoices {
		printCatalog(catalog)
		return nil
	}

	if voiceID != "" {
		engine.SetVoice(voiceID)
	}
	applied := engine.SetRate(rate)
	log.Debug("configured", "engine", engineName, "rate", tts.RateDisplay(applied))

	blocks := document.Parse(markdown)
	if len(blocks) == 0 {
		return errors.New("no readable blocks in source")
	}
	engine.SetContext(resolveContext(markdown))

	if err := play(engine, blocks); err != nil {
		return err
	}

	if watchFile && path != "" {
		return watchAndReplay(path, engine, finished, failures)
	}

	select {
	case <-finished:
		return nil
	case err := <-failures:
		return err
	}
}

// resolveContext honors an explicit context override and otherwise detects
// one from the whole document.
func resolveContext(markdown []byte) text.Context {
	if contextName != "" && contextName != "auto" {
		return text.ParseContext(contextName)
	}
	detected := text.DetectContext(string(markdown))
	log.Info("document context", "context", detected)
	return detected
}

// play starts playback over the requested block range. --from and --to
// default to the first and last block.
func play(engine *tts.Engine, blocks []tts.Block) error {
	start := blocks[0].ID
	if fromBlock != 0 {
		start = fromBlock
	}
	if toBlock != 0 {
		return engine.PlayRange(blocks, start, toBlock)
	}
	return engine.Play(blocks, start)
}

// watchAndReplay re-reads and replays the document whenever it changes on
// disk. Runs until interrupted.
func watchAndReplay(path string, engine *tts.Engine, finished chan struct{}, failures chan error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to watch file: %w", err)
	}
	defer watcher.Close() //nolint:errcheck

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("unable to watch %s: %w", path, err)
	}
	log.Info("watching for changes", "path", path)

	for {
		select {
		case <-finished:
			log.Info("playback complete, still watching")

		case err := <-failures:
			log.Error("playback failed, still watching", "err", err)

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			markdown, err := os.ReadFile(path)
			if err != nil {
				log.Error("unable to re-read file", "err", err)
				continue
			}

			engine.Stop()
			blocks := document.Parse(markdown)
			if len(blocks) == 0 {
				log.Warn("document has no readable blocks, waiting for next change")
				continue
			}
			engine.SetContext(resolveContext(markdown))
			log.Info("document changed, restarting playback", "blocks", len(blocks))
			if err := play(engine, blocks); err != nil {
				log.Error("unable to restart playback", "err", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("watch error", "err", err)
		}
	}
}

func printCatalog(catalog []voices.Entry) {
	if len(catalog) == 0 {
		fmt.Println("no local voices available")
		return
	}
	for _, v := range catalog {
		fmt.Printf("%-24s %-20s %s\n", v.ID, v.DisplayName, v.LanguageLabel)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	tryLoadConfigFromDefaultPlaces()

	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.Flags().StringVarP(&engineName, "engine", "e", "espeak", "speech engine (espeak or mock)")
	rootCmd.Flags().StringVarP(&voiceID, "voice", "v", "", "voice identifier (see --list-voices)")
	rootCmd.Flags().Float64VarP(&rate, "rate", "r", 1.0, "speech rate multiplier (0.5 to 3.0)")
	rootCmd.Flags().StringVarP(&contextName, "context", "c", "auto", "document context (auto, general, technical, medical)")
	rootCmd.Flags().IntVar(&fromBlock, "from", 0, "first block id to read")
	rootCmd.Flags().IntVar(&toBlock, "to", 0, "last block id to read")
	rootCmd.Flags().BoolVar(&listVoices, "list-voices", false, "list local voices and exit")
	rootCmd.Flags().BoolVarP(&watchFile, "watch", "W", false, "replay the document whenever it changes")
	rootCmd.Flags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")

	// Config bindings
	_ = viper.BindPFlag("engine", rootCmd.Flags().Lookup("engine"))
	_ = viper.BindPFlag("voice", rootCmd.Flags().Lookup("voice"))
	_ = viper.BindPFlag("rate", rootCmd.Flags().Lookup("rate"))
	_ = viper.BindPFlag("context", rootCmd.Flags().Lookup("context"))

	viper.SetDefault("engine", "espeak")
	viper.SetDefault("voice", "")
	viper.SetDefault("rate", 1.0)
	viper.SetDefault("context", "auto")
	viper.SetDefault("espeak.binary", "espeak-ng")
	viper.SetDefault("espeak.wpm", 175)

	rootCmd.AddCommand(configCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "readaloud")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "readaloud")}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("readaloud")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("readaloud")
	viper.AutomaticEnv()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Println("Could not parse configuration file:", err)
			os.Exit(1)
		}
	}
}
