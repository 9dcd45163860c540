package api

import "time"

const (
	DefaultHost      = "localhost"
	DefaultPort      = 3000
	DefaultWorkers   = 4
	DefaultDebounce  = 100 * time.Millisecond
	DefaultCacheFile = ".many-assets/cache.db"
	DefaultJSTarget  = "es2015"
	DefaultJPEGQual  = 90
	DefaultStylusBin = "stylus"
)

// DefaultBrowsers approximates the "> 0.1%" browserslist query as esbuild
// engine targets.
var DefaultBrowsers = []string{"chrome58", "edge16", "firefox57", "safari11", "ios11"}

// DefaultPaths returns the path table used when a config file omits it.
func DefaultPaths() Paths {
	return Paths{
		Root: Category{Src: "src", Dest: "app"},
		HTML: Category{Src: "src/*.html", Dest: "app"},
		Styles: StylePaths{
			Styl:    "src/styles/styl/*.styl",
			Dev:     "src/styles",
			SrcProd: "src/styles/*.css",
			Prod:    "app/styles",
		},
		Scripts: ScriptPaths{
			SrcDev:   "src/js/dev/*.js",
			DestDev:  "src/js",
			SrcProd:  "src/js/*.js",
			DestProd: "app/js",
		},
		Images: Category{Src: "src/images/*.{jpg,jpeg,png}", Dest: "app/images"},
	}
}

// DefaultTasks returns the dev and prod task tables.
func DefaultTasks() map[string][]StepConfig {
	return map[string][]StepConfig{
		TaskDev: {
			{Name: "styles-dev", Type: StepTypeStylus},
			{Name: "scripts-dev", Type: StepTypeScripts, Scripts: &ScriptConfig{Mode: ScriptModeTranspile}},
			{Name: "serve", Type: StepTypeServe, Serve: &ServeConfig{
				Watch: []WatchConfig{
					{Pattern: "src/*.html", Reload: true},
					{Pattern: "src/styles/styl/*.styl", Run: []string{"styles-dev"}, Reload: true},
					{Pattern: "src/js/dev/*.js", Run: []string{"scripts-dev"}, Reload: true},
				},
			}},
		},
		TaskProd: {
			{Name: "clean", Type: StepTypeClean},
			{Name: "html", Type: StepTypeHTML},
			{Name: "styles-prod", Type: StepTypeStyles},
			{Name: "scripts-prod", Type: StepTypeScripts, Scripts: &ScriptConfig{Mode: ScriptModeMinify}},
			{Name: "images", Type: StepTypeImages},
		},
	}
}

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig(dir string) *Config {
	cfg := &Config{Dir: dir}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields. Path table entries are filled
// individually so a file may override only the ones it cares about.
func (c *Config) ApplyDefaults() {
	applyPathDefaults(&c.Paths, DefaultPaths())

	if len(c.Tasks) == 0 {
		c.Tasks = DefaultTasks()
	}

	if c.Styles.StylusBinary == "" {
		c.Styles.StylusBinary = DefaultStylusBin
	}
	if len(c.Styles.Browsers) == 0 {
		c.Styles.Browsers = append([]string(nil), DefaultBrowsers...)
	}
	if c.Scripts.Target == "" {
		c.Scripts.Target = DefaultJSTarget
	}
	if c.Images.JPEG.Quality == 0 {
		c.Images.JPEG.Quality = DefaultJPEGQual
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.Workers <= 0 {
		c.Server.Workers = DefaultWorkers
	}
	if c.Server.Debounce == "" {
		c.Server.Debounce = DefaultDebounce.String()
	}
	if c.Cache.File == "" {
		c.Cache.File = DefaultCacheFile
	}
}

func applyPathDefaults(p *Paths, def Paths) {
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&p.Root.Src, def.Root.Src)
	fill(&p.Root.Dest, def.Root.Dest)
	fill(&p.HTML.Src, def.HTML.Src)
	fill(&p.HTML.Dest, def.HTML.Dest)
	fill(&p.Styles.Styl, def.Styles.Styl)
	fill(&p.Styles.Dev, def.Styles.Dev)
	fill(&p.Styles.SrcProd, def.Styles.SrcProd)
	fill(&p.Styles.Prod, def.Styles.Prod)
	fill(&p.Scripts.SrcDev, def.Scripts.SrcDev)
	fill(&p.Scripts.DestDev, def.Scripts.DestDev)
	fill(&p.Scripts.SrcProd, def.Scripts.SrcProd)
	fill(&p.Scripts.DestProd, def.Scripts.DestProd)
	fill(&p.Images.Src, def.Images.Src)
	fill(&p.Images.Dest, def.Images.Dest)
}

// DebounceDuration parses Server.Debounce, falling back to the default.
func (c *Config) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(c.Server.Debounce)
	if err != nil || d < 0 {
		return DefaultDebounce
	}
	return d
}

// CacheEnabled reports whether the optimization cache is on.
func (c *Config) CacheEnabled() bool {
	return BoolOr(c.Cache.Enabled, true)
}
