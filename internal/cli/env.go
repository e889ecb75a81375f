package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/llehouerou/scrobsync/internal/config"
	"github.com/llehouerou/scrobsync/internal/errmsg"
	"github.com/llehouerou/scrobsync/internal/filelock"
	"github.com/llehouerou/scrobsync/internal/lastfm"
	"github.com/llehouerou/scrobsync/internal/library"
	"github.com/llehouerou/scrobsync/internal/scrobble"
	"github.com/llehouerou/scrobsync/internal/state"
	"github.com/llehouerou/scrobsync/internal/synclog"
)

var errNoCredentials = errors.New("last.fm api_key and api_secret are not configured")

// env holds the resources a command works with.
type env struct {
	store   *state.Manager
	lock    *filelock.Lock
	synclog *synclog.Log
	client  *lastfm.Client
	source  library.Source
}

// openStore opens the database, its pass lock and the sync log.
func openStore() (*env, error) {
	lockPath, err := state.LockPath()
	if err != nil {
		return nil, errors.New(errmsg.Format(errmsg.OpInitialize, err))
	}
	store, err := state.Open()
	if err != nil {
		return nil, errors.New(errmsg.Format(errmsg.OpInitialize, err))
	}

	path, err := synclog.DefaultPath()
	if err != nil {
		store.Close()
		return nil, errors.New(errmsg.Format(errmsg.OpLogLoad, err))
	}
	log, err := synclog.Open(path)
	if err != nil {
		store.Close()
		return nil, errors.New(errmsg.Format(errmsg.OpLogLoad, err))
	}
	return &env{store: store, lock: filelock.New(lockPath), synclog: log}, nil
}

// openFull also creates the Last.fm client, restores the stored session and
// opens the library.
func openFull(ctx context.Context) (*env, error) {
	if !cfg.HasLastfmConfig() {
		return nil, errNoCredentials
	}
	if !cfg.HasLibraryConfig() {
		return nil, errors.New(errmsg.Format(errmsg.OpLibraryOpen, errors.New("library source is not configured")))
	}

	e, err := openStore()
	if err != nil {
		return nil, err
	}
	e.client = newClient()
	session, err := e.store.Session(ctx)
	switch {
	case err == nil:
		e.client.SetSession(session.Username, session.Key)
	case !errors.Is(err, state.ErrNoSession):
		e.close()
		return nil, err
	}
	e.source = newSource(cfg.GetLibraryConfig())
	return e, nil
}

func newClient() *lastfm.Client {
	return lastfm.New(cfg.Lastfm.APIKey, cfg.Lastfm.APISecret)
}

func newSource(lib config.LibraryConfig) library.Source {
	if lib.Source == config.SourceMPD {
		return library.NewMPDSource(library.MPDConfig{
			Addr:              lib.MPDAddr,
			Password:          lib.MPDPassword,
			MusicDir:          lib.MusicDir,
			PlayCountSticker:  lib.PlayCountSticker,
			LastPlayedSticker: lib.LastPlayedSticker,
		})
	}
	return library.NewITunesSource(lib.ITunesPath)
}

// service builds the sync engine over e.
func (e *env) service() (*scrobble.Service, error) {
	syncCfg := cfg.GetSyncConfig()
	deps := scrobble.Deps{
		Library: e.source,
		Store:   e.store,
		Remote:  e.client,
		Log:     e.synclog,
		Lock:    e.lock,
	}
	if cfg.GetLibraryConfig().Artwork {
		deps.Artwork = library.Artwork
	}
	svc, err := scrobble.NewService(deps, scrobble.Config{
		Lookback:      syncCfg.Lookback(),
		Retention:     syncCfg.Retention(),
		PruneInterval: syncCfg.PruneInterval(),
		HistoryLimit:  syncCfg.HistoryLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("create sync engine: %w", err)
	}
	return svc, nil
}

func (e *env) close() {
	if e.store != nil {
		e.store.Close()
	}
}
