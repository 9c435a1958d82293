package actors

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RoutingLogic picks the recipients for one message out of the current
// routee set. Implementations must be safe for use from a single router
// actor; they are never shared between routers.
type RoutingLogic interface {
	Select(message any, routees []*ActorRef) []*ActorRef
}

// ConsistentHashable lets a message carry its own hash key. Messages
// without it are hashed on their formatted value.
type ConsistentHashable interface {
	HashKey() string
}

// Router management messages.
type (
	// Broadcast wraps a message so a router delivers it to every routee
	// regardless of its routing logic.
	Broadcast struct{ Message any }
	// GetRoutees asks a router for its current routee set.
	GetRoutees struct{}
	// Routees is a router's reply to GetRoutees.
	Routees struct{ Refs []*ActorRef }
	// AddRoutee registers an existing actor with a router.
	AddRoutee struct{ Ref *ActorRef }
	// RemoveRoutee detaches a routee from a router without stopping it.
	RemoveRoutee struct{ Ref *ActorRef }
)

// RoundRobinLogic cycles through routees in order.
type RoundRobinLogic struct {
	next int
}

func (l *RoundRobinLogic) Select(_ any, routees []*ActorRef) []*ActorRef {
	if len(routees) == 0 {
		return nil
	}
	r := routees[l.next%len(routees)]
	l.next++
	return []*ActorRef{r}
}

// RandomLogic picks a uniformly random routee.
type RandomLogic struct {
	rng *rand.Rand
}

func (l *RandomLogic) Select(_ any, routees []*ActorRef) []*ActorRef {
	if len(routees) == 0 {
		return nil
	}
	if l.rng == nil {
		l.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return []*ActorRef{routees[l.rng.Intn(len(routees))]}
}

// BroadcastLogic selects every routee.
type BroadcastLogic struct{}

func (BroadcastLogic) Select(_ any, routees []*ActorRef) []*ActorRef {
	return routees
}

// SmallestMailboxLogic picks the routee with the fewest pending messages.
type SmallestMailboxLogic struct {
	system *ActorSystem
}

func (l *SmallestMailboxLogic) Select(_ any, routees []*ActorRef) []*ActorRef {
	if len(routees) == 0 {
		return nil
	}
	best := routees[0]
	bestLen := l.mailboxLen(best)
	for _, r := range routees[1:] {
		if n := l.mailboxLen(r); n < bestLen {
			best, bestLen = r, n
		}
	}
	return []*ActorRef{best}
}

func (l *SmallestMailboxLogic) mailboxLen(ref *ActorRef) int {
	if l.system == nil {
		return 0
	}
	cell, ok := l.system.cellFor(ref)
	if !ok {
		return int(^uint(0) >> 1)
	}
	return cell.mailbox.Len()
}

// ConsistentHashingLogic maps messages to routees over a hash ring with
// virtual nodes, so the same key always lands on the same routee while the
// set is stable, and only a fraction of keys move when it changes.
type ConsistentHashingLogic struct {
	virtualNodes int

	fingerprint string
	ring        map[uint64]*ActorRef
	keys        []uint64
}

// NewConsistentHashingLogic creates a ring with the given number of virtual
// nodes per routee. Zero or negative means 16.
func NewConsistentHashingLogic(virtualNodes int) *ConsistentHashingLogic {
	if virtualNodes <= 0 {
		virtualNodes = 16
	}
	return &ConsistentHashingLogic{virtualNodes: virtualNodes}
}

func (l *ConsistentHashingLogic) Select(message any, routees []*ActorRef) []*ActorRef {
	if len(routees) == 0 {
		return nil
	}
	l.rebuildIfChanged(routees)

	key := hashKeyOf(message)
	h := fnv64(key)
	i := sort.Search(len(l.keys), func(i int) bool { return l.keys[i] >= h })
	if i == len(l.keys) {
		i = 0
	}
	return []*ActorRef{l.ring[l.keys[i]]}
}

// rebuildIfChanged rebuilds the ring only when the routee set itself
// changed, detected by a fingerprint over paths and incarnation IDs rather
// than the slice identity.
func (l *ConsistentHashingLogic) rebuildIfChanged(routees []*ActorRef) {
	parts := make([]string, len(routees))
	for i, r := range routees {
		parts[i] = r.path + "#" + r.id
	}
	sort.Strings(parts)
	fp := strings.Join(parts, ",")
	if fp == l.fingerprint {
		return
	}

	l.fingerprint = fp
	l.ring = make(map[uint64]*ActorRef, len(routees)*l.virtualNodes)
	l.keys = l.keys[:0]
	for _, r := range routees {
		for v := 0; v < l.virtualNodes; v++ {
			h := fnv64(fmt.Sprintf("%s#%s#%d", r.path, r.id, v))
			l.ring[h] = r
			l.keys = append(l.keys, h)
		}
	}
	sort.Slice(l.keys, func(i, j int) bool { return l.keys[i] < l.keys[j] })
}

func hashKeyOf(message any) string {
	if h, ok := message.(ConsistentHashable); ok {
		return h.HashKey()
	}
	return fmt.Sprintf("%v", message)
}

func fnv64(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// routerActor fronts a set of routees. Pool routers spawn and supervise
// their routees as children; group routers resolve existing actors by path
// and only forward to them.
type routerActor struct {
	BaseActor
	logic RoutingLogic

	poolProps *Props
	poolSize  int
	paths     []string

	scatter time.Duration

	routees []*ActorRef
}

func (a *routerActor) PreStart(ctx *Context) error {
	if l, ok := a.logic.(*SmallestMailboxLogic); ok {
		l.system = ctx.System()
	}
	a.routees = a.routees[:0]
	if a.poolProps != nil {
		for i := 0; i < a.poolSize; i++ {
			ref, err := ctx.Spawn(*a.poolProps, fmt.Sprintf("routee-%d", i))
			if err != nil {
				return fmt.Errorf("spawn routee: %w", err)
			}
			ctx.Watch(ref)
			a.routees = append(a.routees, ref)
		}
		return nil
	}
	for _, path := range a.paths {
		ref, ok := ctx.System().ActorSelection(path)
		if !ok {
			ctx.Logger().Warn("router group member not found", "path", path)
			continue
		}
		ctx.Watch(ref)
		a.routees = append(a.routees, ref)
	}
	return nil
}

func (a *routerActor) Receive(ctx *Context) error {
	switch msg := ctx.Message().(type) {
	case GetRoutees:
		ctx.Respond(Routees{Refs: append([]*ActorRef(nil), a.routees...)})
	case AddRoutee:
		if msg.Ref != nil && !a.contains(msg.Ref) {
			ctx.Watch(msg.Ref)
			a.routees = append(a.routees, msg.Ref)
		}
	case RemoveRoutee:
		a.remove(msg.Ref)
		if msg.Ref != nil {
			ctx.Unwatch(msg.Ref)
		}
	case Terminated:
		a.remove(msg.Ref)
	case Broadcast:
		for _, r := range a.routees {
			r.Tell(msg.Message, ctx.Sender())
		}
	default:
		a.route(ctx)
	}
	return nil
}

func (a *routerActor) route(ctx *Context) {
	if len(a.routees) == 0 {
		ctx.System().deadLetters.record(DeadLetter{
			Message:   ctx.Message(),
			Sender:    ctx.Sender(),
			Recipient: ctx.Self().Path(),
			Reason:    ErrNoRoutees.Error(),
			Timestamp: time.Now(),
		})
		return
	}
	if a.scatter > 0 {
		a.scatterGather(ctx)
		return
	}
	for _, r := range a.logic.Select(ctx.Message(), a.routees) {
		r.Tell(ctx.Message(), ctx.Sender())
	}
}

// scatterGather sends to every routee and forwards the first reply to the
// original sender. Later replies resolve nothing and are dropped by the
// future.
func (a *routerActor) scatterGather(ctx *Context) {
	system := ctx.System()
	sender := ctx.Sender()
	message := ctx.Message()

	f := newFuture()
	ra := &replyActor{future: f}
	path := system.rootPath + "/temp/gather-" + uuid.NewString()
	ref := system.spawnTemp(ra, path)
	ra.setTimer(system.scheduler.ScheduleOnce(a.scatter, ref, askExpired{}))

	for _, r := range a.routees {
		r.Tell(message, ref)
	}
	go func() {
		cctx, cancel := context.WithTimeout(context.Background(), a.scatter+time.Second)
		defer cancel()
		value, err := f.Await(cctx)
		if err == nil && sender != nil {
			sender.Tell(value, nil)
		}
	}()
}

func (a *routerActor) contains(ref *ActorRef) bool {
	for _, r := range a.routees {
		if r.Equals(ref) {
			return true
		}
	}
	return false
}

func (a *routerActor) remove(ref *ActorRef) {
	for i, r := range a.routees {
		if r.Equals(ref) {
			a.routees = append(a.routees[:i], a.routees[i+1:]...)
			return
		}
	}
}

// Pool router factories. The returned Props spawn a router that creates
// size copies of props as its children.

func RoundRobinPool(props Props, size int) Props {
	return NewProps(func() Actor {
		return &routerActor{logic: &RoundRobinLogic{}, poolProps: &props, poolSize: size}
	})
}

func RandomPool(props Props, size int) Props {
	return NewProps(func() Actor {
		return &routerActor{logic: &RandomLogic{}, poolProps: &props, poolSize: size}
	})
}

func BroadcastPool(props Props, size int) Props {
	return NewProps(func() Actor {
		return &routerActor{logic: BroadcastLogic{}, poolProps: &props, poolSize: size}
	})
}

func SmallestMailboxPool(props Props, size int) Props {
	return NewProps(func() Actor {
		return &routerActor{logic: &SmallestMailboxLogic{}, poolProps: &props, poolSize: size}
	})
}

func ConsistentHashingPool(props Props, size, virtualNodes int) Props {
	return NewProps(func() Actor {
		return &routerActor{logic: NewConsistentHashingLogic(virtualNodes), poolProps: &props, poolSize: size}
	})
}

// ScatterGatherPool broadcasts each message to all routees and forwards the
// first reply received within the window to the original sender.
func ScatterGatherPool(props Props, size int, within time.Duration) Props {
	if within <= 0 {
		within = 5 * time.Second
	}
	return NewProps(func() Actor {
		return &routerActor{logic: BroadcastLogic{}, poolProps: &props, poolSize: size, scatter: within}
	})
}

// Group router factories. The returned Props spawn a router over existing
// actors resolved by path; the router never stops them.

func RoundRobinGroup(paths ...string) Props {
	return NewProps(func() Actor {
		return &routerActor{logic: &RoundRobinLogic{}, paths: paths}
	})
}

func BroadcastGroup(paths ...string) Props {
	return NewProps(func() Actor {
		return &routerActor{logic: BroadcastLogic{}, paths: paths}
	})
}

func ConsistentHashingGroup(virtualNodes int, paths ...string) Props {
	return NewProps(func() Actor {
		return &routerActor{logic: NewConsistentHashingLogic(virtualNodes), paths: paths}
	})
}
