package tree

import (
	"context"
	"encoding/json"
	"sync"

	pkglogger "github.com/damoang/angple-messenger/pkg/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisChangesChannel = "tree:changes"

// Notifier fans committed change paths out to watchers. With a redis client it
// also publishes changes to, and receives them from, other instances.
type Notifier struct {
	watchers map[uint64]*watcher
	nextID   uint64
	mu       sync.RWMutex

	redisClient *redis.Client
	instanceID  string
	ctx         context.Context
	cancel      context.CancelFunc
}

type watcher struct {
	path   string
	fn     func(changed string)
	signal chan string
	done   chan struct{}
	once   sync.Once
}

type changeMessage struct {
	Instance string   `json:"instance"`
	Paths    []string `json:"paths"`
}

// NewNotifier creates a notifier; redisClient may be nil (single instance)
func NewNotifier(redisClient *redis.Client) *Notifier {
	ctx, cancel := context.WithCancel(context.Background())
	n := &Notifier{
		watchers:    make(map[uint64]*watcher),
		redisClient: redisClient,
		instanceID:  uuid.NewString(),
		ctx:         ctx,
		cancel:      cancel,
	}
	if redisClient != nil {
		go n.subscribeRedis()
	}
	return n
}

// Watch registers fn for changes overlapping path. Callbacks for one watcher run
// serially on a dedicated goroutine; bursts are coalesced. The returned func
// unregisters the watcher and is safe to call more than once.
func (n *Notifier) Watch(path string, fn func(changed string)) func() {
	return n.watch(path, fn, false)
}

// Subscribe is Watch plus one immediate callback with changed == path
func (n *Notifier) Subscribe(path string, fn func(changed string)) func() {
	return n.watch(path, fn, true)
}

func (n *Notifier) watch(path string, fn func(changed string), initial bool) func() {
	w := &watcher{
		path:   path,
		fn:     fn,
		signal: make(chan string, 1),
		done:   make(chan struct{}),
	}
	if initial {
		w.signal <- path
	}

	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.watchers[id] = w
	n.mu.Unlock()

	go w.loop()

	return func() {
		w.once.Do(func() {
			n.mu.Lock()
			delete(n.watchers, id)
			n.mu.Unlock()
			close(w.done)
		})
	}
}

func (w *watcher) loop() {
	for {
		select {
		case changed := <-w.signal:
			select {
			case <-w.done:
				return
			default:
			}
			w.fn(changed)
		case <-w.done:
			return
		}
	}
}

// Notify dispatches changes locally and publishes them for other instances
func (n *Notifier) Notify(paths ...string) {
	if len(paths) == 0 {
		return
	}
	n.dispatch(paths)

	if n.redisClient != nil {
		data, err := json.Marshal(&changeMessage{Instance: n.instanceID, Paths: paths})
		if err == nil {
			if err := n.redisClient.Publish(n.ctx, redisChangesChannel, data).Err(); err != nil {
				pkglogger.GetLogger().Warn().Err(err).Msg("tree: publish changes failed")
			}
		}
	}
}

func (n *Notifier) dispatch(paths []string) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, w := range n.watchers {
		for _, p := range paths {
			if !overlaps(w.path, p) {
				continue
			}
			// A pending signal already guarantees a reload
			select {
			case w.signal <- p:
			default:
			}
			break
		}
	}
}

// subscribeRedis listens for changes committed by other instances
func (n *Notifier) subscribeRedis() {
	pubsub := n.redisClient.Subscribe(n.ctx, redisChangesChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var cm changeMessage
			if err := json.Unmarshal([]byte(msg.Payload), &cm); err != nil {
				continue
			}
			// Only local dispatch (don't re-publish)
			if cm.Instance != n.instanceID {
				n.dispatch(cm.Paths)
			}
		case <-n.ctx.Done():
			return
		}
	}
}

// WatcherCount returns the number of live watchers
func (n *Notifier) WatcherCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.watchers)
}

// Close stops the redis subscriber and all watchers
func (n *Notifier) Close() {
	n.cancel()
	n.mu.Lock()
	ws := n.watchers
	n.watchers = make(map[uint64]*watcher)
	n.mu.Unlock()
	for _, w := range ws {
		w.once.Do(func() { close(w.done) })
	}
}
