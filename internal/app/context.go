package app

import (
	"fmt"

	"github.com/tahirrasheed89/newsreap/internal/codec"
	"github.com/tahirrasheed89/newsreap/internal/infra/config"
	"github.com/tahirrasheed89/newsreap/internal/infra/logger"
	"github.com/tahirrasheed89/newsreap/internal/store"
	"github.com/tahirrasheed89/newsreap/internal/yenc"
)

// Context holds the shared environment for one CLI invocation.
type Context struct {
	Config *config.Config
	Logger *logger.Logger
	Groups *store.GroupStore
}

// NewContext builds the environment from a loaded config. The group
// store opens lazily via OpenStore so codec-only commands don't touch
// the database file.
func NewContext(cfg *config.Config, log *logger.Logger) *Context {
	return &Context{
		Config: cfg,
		Logger: log,
	}
}

// OpenStore opens the group/article database on first use.
func (c *Context) OpenStore() (*store.GroupStore, error) {
	if c.Groups != nil {
		return c.Groups, nil
	}
	s, err := store.NewGroupStore(c.Config.Store.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	c.Groups = s
	return s, nil
}

// CodecFactory builds yEnc codec instances from the configured codec
// section; pipelines call it once per stage.
func (c *Context) CodecFactory() codec.Factory {
	return func() (codec.Codec, error) {
		return yenc.NewCodec(yenc.Options{
			WorkDir:    c.Config.Codec.WorkDir,
			MemLimit:   c.Config.Codec.MemLimit,
			LineLength: c.Config.Codec.LineLength,
			PartSize:   c.Config.Codec.PartSize,
			Reference:  c.Config.Codec.Reference,
		})
	}
}

func (c *Context) Close() {
	if c.Groups != nil {
		if err := c.Groups.Close(); err != nil {
			c.Logger.Error("Error closing store: %v", err)
		}
	}
}
