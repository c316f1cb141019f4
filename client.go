// Package client wires every subsystem into one App, the Go analogue of
// ClientManager owning Hub/ConnectionManager/QueueManager/UploadManager
// instead of each being a global singleton (Design Note 9). Grounded on the
// teacher's Session struct (session/session.go), which plays the same role
// for rain: one struct owning the DB, every active torrent, and the
// background loops, constructed once by New and torn down once by Close.
package client

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/airdcpp-go/client/internal/adc"
	"github.com/airdcpp-go/client/internal/config"
	"github.com/airdcpp-go/client/internal/connmgr"
	"github.com/airdcpp-go/client/internal/hub"
	"github.com/airdcpp-go/client/internal/identity"
	"github.com/airdcpp-go/client/internal/logging"
	"github.com/airdcpp-go/client/internal/queue"
	"github.com/airdcpp-go/client/internal/ratelimit"
	"github.com/airdcpp-go/client/internal/resume"
	"github.com/airdcpp-go/client/internal/search"
	"github.com/airdcpp-go/client/internal/upload"
)

var log = logging.New("client")

// App owns the whole client for one process: every hub session, the
// connection/queue/upload managers, and the background loops driving them.
type App struct {
	cfg *config.Config

	db       *resume.DB
	bundles  *resume.BundleStore
	registry *identity.Registry

	queue   *queue.Manager
	upload  *upload.Manager
	conns   *connmgr.Manager
	search  *search.Manager
	info    *upload.InfoSender

	uploadLimiter   *ratelimit.Limiter
	downloadLimiter *ratelimit.Limiter

	myPID adc.PID
	myCID adc.CID

	mu   sync.Mutex
	hubs map[string]*hub.Session

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs every subsystem but does not yet connect to any hub or
// open any listener; call Run for that. Grounded on session.New's shape:
// open the DB first, build in-memory managers, defer anything networked.
func New(cfg *config.Config, pid adc.PID) (*App, error) {
	db, err := resume.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("client: open resume db: %w", err)
	}

	a := &App{
		cfg:      cfg,
		db:       db,
		bundles:  resume.NewBundleStore(cfg.DataDir, cfg.BundleSaveDebounce, db),
		registry: identity.NewRegistry(),
		queue:    queue.NewManager(cfg.DataDir),
		myPID:    pid,
		myCID:    adc.CIDFromPID(pid),
		hubs:     make(map[string]*hub.Session),
		info:     upload.NewInfoSender(2 * time.Second),
		search:   search.NewManager(cfg.HubSearchMinGap),
	}
	a.upload = upload.NewManager(upload.Limits{
		MaxSlots:           cfg.MaxSlots,
		ExtraSlots:         cfg.ExtraSlots,
		ExtraPartialSlots:  cfg.ExtraPartialSlots,
		MaxSmallFileSlots:  cfg.MaxSmallFileSlots,
		MiniSlotSize:       cfg.MiniSlotSize,
		MaxMCNConnsPerUser: cfg.MaxMCNConnsPerUser,
		SpeedLimitBps:      float64(cfg.SpeedLimitGraceBps),
	})
	a.conns = connmgr.NewManager(a.myCID, a.queue, a.upload)
	a.uploadLimiter = ratelimit.NewLimiter(cfg.UploadRateLimitBps)
	a.downloadLimiter = ratelimit.NewLimiter(cfg.DownloadRateLimitBps)

	a.queue.FileFinished.Subscribe("resume.save", func(f *queue.QueueFile) error {
		if f.Bundle != nil {
			a.bundles.ScheduleSave(f.Bundle)
		}
		return nil
	})

	return a, nil
}

// Run starts every background loop and blocks until ctx is cancelled,
// then shuts every subsystem down in reverse dependency order, per
// spec.md §5's shutdown sequencing: stop accepting new work (listeners,
// hub command loops) before tearing down the managers they feed.
func (a *App) Run(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)

	bundles, err := resume.LoadAll(a.db)
	if err != nil {
		log.Errorf("load bundles: %v", err)
	} else {
		for _, b := range bundles {
			log.Infof("resumed bundle %s (%d files)", b.Token, len(b.Files))
		}
	}

	a.wg.Add(1)
	go func() { defer a.wg.Done(); a.registry.Run() }()

	a.wg.Add(1)
	go func() { defer a.wg.Done(); a.conns.Run(a.ctx, a.cfg.SegmentTime) }()

	a.wg.Add(1)
	go func() { defer a.wg.Done(); a.runAutoPriority() }()

	a.wg.Add(1)
	go func() { defer a.wg.Done(); a.tickSpeeds() }()

	if err := a.startListeners(); err != nil {
		return err
	}

	<-a.ctx.Done()
	a.shutdown()
	return nil
}

func (a *App) startListeners() error {
	ln, err := connmgr.Listen(fmt.Sprintf(":%d", a.cfg.TCPPort), nil, nil, a.conns.HandleInbound)
	if err != nil {
		return fmt.Errorf("client: listen tcp: %w", err)
	}
	a.wg.Add(1)
	go func() { defer a.wg.Done(); ln.Run(a.ctx) }()

	udpConn, err := net.ListenUDP("udp", &net.UDPAddr{Port: int(a.cfg.UDPPort)})
	if err != nil {
		return fmt.Errorf("client: listen udp: %w", err)
	}
	keys := search.NewKeyStore(a.cfg.SUDPKeyTTL)
	udpListener := search.NewListener(udpConn, keys, a.search)
	a.wg.Add(1)
	go func() { defer a.wg.Done(); udpListener.Run(a.ctx) }()

	return nil
}

func (a *App) runAutoPriority() {
	t := time.NewTicker(a.cfg.AutoPriorityInterval)
	defer t.Stop()
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-t.C:
			a.queue.RunAutoPriority(queue.ModeProgress, a.cfg.RecentBundleWindow, time.Now())
		}
	}
}

// tickSpeeds decays every bundle's rolling-speed EWMA once per
// queue.speedTickInterval, the way a go-metrics Meter's background goroutine
// keeps its own EWMAs current between Update calls.
func (a *App) tickSpeeds() {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-a.ctx.Done():
			return
		case <-t.C:
			for _, b := range a.queue.Bundles() {
				b.TickSpeeds()
			}
		}
	}
}

func (a *App) shutdown() {
	log.Infof("shutting down")
	a.conns.Stop()
	a.registry.Stop()

	a.mu.Lock()
	hubs := make([]*hub.Session, 0, len(a.hubs))
	for _, h := range a.hubs {
		hubs = append(hubs, h)
	}
	a.mu.Unlock()
	for _, h := range hubs {
		h.Disconnect()
	}

	a.wg.Wait()
	if err := a.db.Close(); err != nil {
		log.Errorf("close db: %v", err)
	}
}

// ConnectHub registers a new hub session and starts dialing it in a
// background goroutine; it returns without waiting for the handshake.
func (a *App) ConnectHub(rawURL string, opts hub.Options) (*hub.Session, error) {
	opts.PID = a.myPID
	s, err := hub.New(rawURL, a.registry, opts)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.hubs[rawURL] = s
	a.mu.Unlock()

	a.search.RegisterHub(s)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		s.ConnectAndRun(a.ctx)
	}()
	return s, nil
}

func (a *App) DisconnectHub(url string) {
	a.mu.Lock()
	s, ok := a.hubs[url]
	delete(a.hubs, url)
	a.mu.Unlock()
	if ok {
		a.search.UnregisterHub(url)
		s.Disconnect()
	}
}

func (a *App) QueueManager() *queue.Manager   { return a.queue }
func (a *App) UploadManager() *upload.Manager { return a.upload }
func (a *App) SearchManager() *search.Manager { return a.search }
func (a *App) CID() adc.CID                   { return a.myCID }

// UploadLimiter and DownloadLimiter return the single process-wide limiters
// built from the configured global caps. No connection in this repository
// draws from them.
func (a *App) UploadLimiter() *ratelimit.Limiter   { return a.uploadLimiter }
func (a *App) DownloadLimiter() *ratelimit.Limiter { return a.downloadLimiter }
