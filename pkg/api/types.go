package api

const (
	DefaultConfigFilename = "many-assets.yaml"

	TaskDev  = "dev"
	TaskProd = "prod"

	StepTypeClean   = "clean"
	StepTypeHTML    = "html"
	StepTypeStylus  = "stylus"
	StepTypeStyles  = "styles"
	StepTypeScripts = "scripts"
	StepTypeImages  = "images"
	StepTypeServe   = "serve"

	ScriptModeTranspile = "transpile"
	ScriptModeMinify    = "minify"
)

// Config is the many-assets.yaml configuration format.
//
// A Config is built once at startup and passed by pointer to every task
// invocation. Nothing mutates it after Validate succeeds.
type Config struct {
	Paths   Paths                   `yaml:"paths"`
	Context map[string]any          `yaml:"context"`
	Tasks   map[string][]StepConfig `yaml:"tasks"`
	Styles  StylesConfig            `yaml:"styles"`
	Scripts ScriptsConfig           `yaml:"scripts"`
	Images  ImagesConfig            `yaml:"images"`
	Server  ServerConfig            `yaml:"server"`
	Cache   CacheConfig             `yaml:"cache"`

	// Set by the loader, not from YAML.
	Dir      string `yaml:"-"`
	FilePath string `yaml:"-"`
}

// Paths is the static path table, relative to Config.Dir.
type Paths struct {
	Root    Category    `yaml:"root"`
	HTML    Category    `yaml:"html"`
	Styles  StylePaths  `yaml:"styles"`
	Scripts ScriptPaths `yaml:"scripts"`
	Images  Category    `yaml:"images"`
}

// Category maps a source glob to a destination directory.
type Category struct {
	Src  string `yaml:"src"`
	Dest string `yaml:"dest"`
}

// StylePaths holds the preprocessor sources and both stylesheet outputs.
type StylePaths struct {
	Styl    string `yaml:"styl"`
	Dev     string `yaml:"dev"`
	SrcProd string `yaml:"srcProd"`
	Prod    string `yaml:"prod"`
}

// ScriptPaths holds the unbuilt and built script locations.
type ScriptPaths struct {
	SrcDev   string `yaml:"srcDev"`
	DestDev  string `yaml:"destDev"`
	SrcProd  string `yaml:"srcProd"`
	DestProd string `yaml:"destProd"`
}

// StepConfig defines a single step within a task.
type StepConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	// Src and Dest override the path table entry for the step type.
	Src     string   `yaml:"src,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
	Dest    string   `yaml:"dest,omitempty"`

	// Optional steps succeed without output when nothing matches Src.
	Optional bool `yaml:"optional,omitempty"`
	// Parallel runs the step concurrently with the step before it.
	Parallel bool `yaml:"parallel,omitempty"`

	HTML    *HTMLConfig   `yaml:"html,omitempty"`
	Scripts *ScriptConfig `yaml:"scripts,omitempty"`
	Serve   *ServeConfig  `yaml:"serve,omitempty"`
}

// HTMLConfig configures the html step.
type HTMLConfig struct {
	StripComments *bool `yaml:"stripComments,omitempty"` // default true
	Template      bool  `yaml:"template"`
}

// ScriptConfig configures a scripts step.
type ScriptConfig struct {
	Mode string `yaml:"mode"`
}

// ServeConfig configures the serve step.
type ServeConfig struct {
	BaseDir string        `yaml:"baseDir"`
	Watch   []WatchConfig `yaml:"watch"`
}

// WatchConfig binds a source glob to the steps re-run when it changes.
type WatchConfig struct {
	Pattern string   `yaml:"pattern"`
	Run     []string `yaml:"run"`
	Reload  bool     `yaml:"reload"`
}

// StylesConfig configures stylesheet compilation and post-processing.
type StylesConfig struct {
	StylusBinary      string   `yaml:"stylusBinary"`
	StylusArgs        []string `yaml:"stylusArgs"`
	SourceMaps        *bool    `yaml:"sourceMaps,omitempty"` // default true
	Browsers          []string `yaml:"browsers"`
	GroupMediaQueries *bool    `yaml:"groupMediaQueries,omitempty"` // default true
}

// ScriptsConfig configures script transpilation.
type ScriptsConfig struct {
	Target string `yaml:"target"`
}

// ImagesConfig configures image optimization.
type ImagesConfig struct {
	PNG  FormatConfig `yaml:"png"`
	JPEG JPEGConfig   `yaml:"jpeg"`
	GIF  FormatConfig `yaml:"gif"`
	SVG  FormatConfig `yaml:"svg"`
}

// FormatConfig lists external commands run in order on an image.
// Each command reads the image on stdin and writes the result to stdout.
type FormatConfig struct {
	Commands [][]string `yaml:"commands"`
}

// JPEGConfig adds the lossy re-encode step that runs after the commands.
type JPEGConfig struct {
	FormatConfig `yaml:",inline"`
	Quality      int  `yaml:"quality"`
	Lossless     bool `yaml:"lossless"` // skip the re-encode
}

// ServerConfig configures the dev server.
type ServerConfig struct {
	Host     string `yaml:"host" env:"MANY_ASSETS_HOST"`
	Port     int    `yaml:"port" env:"MANY_ASSETS_PORT"`
	Workers  int    `yaml:"workers" env:"MANY_ASSETS_WORKERS"`
	Debounce string `yaml:"debounce" env:"MANY_ASSETS_DEBOUNCE"`
	Metrics  bool   `yaml:"metrics" env:"MANY_ASSETS_METRICS"`
}

// CacheConfig configures the optimization cache.
type CacheConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty" env:"MANY_ASSETS_CACHE_ENABLED"`
	File    string `yaml:"file" env:"MANY_ASSETS_CACHE_FILE"`
}

// BoolOr returns the value of b, or def when b is unset.
func BoolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
