// Package config loads a site's YAML configuration file into the
// model.SiteConfig the rest of the engine consumes, following the
// teacher's defaults-struct-then-overlay pattern.
package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"stbl2/internal/model"
)

// yamlConfig mirrors the on-disk shape of stbl.yaml. Every field is
// optional; fields absent from the file keep the defaults Load seeds
// before unmarshaling over them.
type yamlConfig struct {
	Site struct {
		Id           string `yaml:"id"`
		Title        string `yaml:"title"`
		AbstractText string `yaml:"abstract"`
		BaseURL      string `yaml:"baseURL"`
		Language     string `yaml:"language"`
		Timezone     string `yaml:"timezone"`
		UrlStyle     string `yaml:"urlStyle"`
	} `yaml:"site"`

	Theme struct {
		Name string            `yaml:"name"`
		Vars map[string]string `yaml:"vars"`
	} `yaml:"theme"`

	Media struct {
		Images struct {
			Widths     []uint32 `yaml:"widths"`
			Quality    uint8    `yaml:"quality"`
			FormatMode string   `yaml:"formatMode"`
		} `yaml:"images"`
		Video struct {
			Heights       []uint32 `yaml:"heights"`
			PosterTimeSec uint32   `yaml:"posterTimeSec"`
		} `yaml:"video"`
	} `yaml:"media"`

	Assets struct {
		CacheBusting bool `yaml:"cacheBusting"`
	} `yaml:"assets"`

	Blog struct {
		PageSize int `yaml:"pageSize"`
		Series   struct {
			LatestParts int `yaml:"latestParts"`
		} `yaml:"series"`
		Abstract struct {
			Enabled  bool `yaml:"enabled"`
			MaxChars int  `yaml:"maxChars"`
		} `yaml:"abstract"`
	} `yaml:"blog"`

	Rss struct {
		Enabled  bool `yaml:"enabled"`
		MaxItems int  `yaml:"maxItems"`
		TtlDays  int  `yaml:"ttlDays"`
	} `yaml:"rss"`
}

func defaults() yamlConfig {
	var c yamlConfig
	c.Site.Language = "en"
	c.Site.UrlStyle = "pretty"
	c.Theme.Name = "default"
	c.Media.Images.Widths = []uint32{320, 640, 1024, 1600}
	c.Media.Images.Quality = 82
	c.Media.Images.FormatMode = "normal"
	c.Media.Video.Heights = []uint32{480, 720}
	c.Media.Video.PosterTimeSec = 1
	c.Blog.PageSize = 10
	c.Blog.Series.LatestParts = 3
	c.Blog.Abstract.Enabled = true
	c.Blog.Abstract.MaxChars = 280
	c.Rss.Enabled = true
	c.Rss.MaxItems = 20
	return c
}

// Load reads and parses path (falling back silently to pure defaults
// if it does not exist — a fresh scaffold has no config yet), and
// converts it into a model.SiteConfig.
func Load(path string) (model.SiteConfig, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return toModel(cfg), nil
		}
		return model.SiteConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return model.SiteConfig{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return toModel(cfg), nil
}

func toModel(c yamlConfig) model.SiteConfig {
	urlStyle, _ := model.ParseUrlStyle(c.Site.UrlStyle)
	formatMode := model.FormatModeNormal
	if c.Media.Images.FormatMode == "fast" {
		formatMode = model.FormatModeFast
	}

	widths := sortedUint32(c.Media.Images.Widths)
	heights := sortedUint32(c.Media.Video.Heights)

	return model.SiteConfig{
		Site: model.SiteMeta{
			Id:           c.Site.Id,
			Title:        c.Site.Title,
			AbstractText: c.Site.AbstractText,
			BaseURL:      c.Site.BaseURL,
			Language:     c.Site.Language,
			Timezone:     c.Site.Timezone,
			UrlStyle:     urlStyle,
		},
		Theme: model.ThemeConfig{
			Name: c.Theme.Name,
			Vars: c.Theme.Vars,
		},
		Media: model.MediaConfig{
			Images: model.ImagesConfig{
				Widths:     widths,
				Quality:    c.Media.Images.Quality,
				FormatMode: formatMode,
			},
			Video: model.VideoConfig{
				Heights:       heights,
				PosterTimeSec: c.Media.Video.PosterTimeSec,
			},
		},
		Assets: model.AssetsConfig{CacheBusting: c.Assets.CacheBusting},
		Blog: model.BlogConfig{
			PageSize: c.Blog.PageSize,
			Series:   model.BlogSeriesConfig{LatestParts: c.Blog.Series.LatestParts},
			Abstract: model.BlogAbstractConfig{Enabled: c.Blog.Abstract.Enabled, MaxChars: c.Blog.Abstract.MaxChars},
		},
		Rss: model.RssConfig{
			Enabled:  c.Rss.Enabled,
			MaxItems: c.Rss.MaxItems,
			TtlDays:  c.Rss.TtlDays,
		},
	}
}

func sortedUint32(in []uint32) []uint32 {
	out := append([]uint32(nil), in...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
