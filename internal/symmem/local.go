package symmem

import (
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/rift-ml/rift/internal/parallel"
	"github.com/rift-ml/rift/internal/tensor"
)

// WorldGroup is the name of the group containing every rank of a
// LocalRuntime. It always exists.
const WorldGroup = "world"

// Names of the collective kernels a round can execute. All members of a group
// must invoke the same kernel in the same round or the round fails.
const (
	opSplits  = "all_to_all_v_splits"
	opOffsets = "all_to_all_v_offsets"
)

// LocalRuntime is an in-process implementation of the Runtime contract.
// Ranks are goroutines within one process, so "symmetric" buffers are plain
// host allocations every peer can address; a collective round rendezvouses
// all members of a group and the last arriver performs the whole exchange by
// writing peers' output buffers directly.
//
// The runtime itself is internally synchronized; the operators built on top
// of it are not (one computation stream per operator instance).
type LocalRuntime struct {
	world int

	mu     sync.Mutex
	groups map[string]*localGroup

	// Live symmetric allocation bookkeeping.
	liveBuffers int
	liveBytes   int64

	parallelCfg parallel.Config
}

// NewLocalRuntime creates a runtime with worldSize ranks and the implicit
// "world" group covering all of them.
func NewLocalRuntime(worldSize int) (*LocalRuntime, error) {
	if worldSize <= 0 {
		return nil, errors.Errorf("world size must be positive, got %d", worldSize)
	}
	rt := &LocalRuntime{
		world:       worldSize,
		groups:      make(map[string]*localGroup),
		parallelCfg: parallel.DefaultConfig(),
	}
	ranks := make([]int, worldSize)
	for i := range ranks {
		ranks[i] = i
	}
	rt.groups[WorldGroup] = newLocalGroup(WorldGroup, ranks)
	return rt, nil
}

// WorldSize returns the total number of ranks of the runtime.
func (rt *LocalRuntime) WorldSize() int {
	return rt.world
}

// NewGroup registers a named subgroup. Ranks are global; the order given
// defines group ranks.
func (rt *LocalRuntime) NewGroup(name string, ranks []int) error {
	if len(ranks) == 0 {
		return errors.Errorf("group %q must have at least one member", name)
	}
	seen := make(map[int]bool, len(ranks))
	for _, r := range ranks {
		if r < 0 || r >= rt.world {
			return errors.Errorf("group %q: rank %d out of range [0, %d)", name, r, rt.world)
		}
		if seen[r] {
			return errors.Errorf("group %q: duplicate rank %d", name, r)
		}
		seen[r] = true
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if _, exists := rt.groups[name]; exists {
		return errors.Errorf("group %q already exists", name)
	}
	rt.groups[name] = newLocalGroup(name, ranks)
	return nil
}

// Peer returns the rank-bound Runtime handle a worker goroutine uses.
func (rt *LocalRuntime) Peer(rank int) (*Peer, error) {
	if rank < 0 || rank >= rt.world {
		return nil, errors.Errorf("rank %d out of range [0, %d)", rank, rt.world)
	}
	return &Peer{rt: rt, rank: rank}, nil
}

// AllocStats reports live symmetric buffers and their total bytes. Tests use
// this to assert that repeated operator calls reuse allocations.
func (rt *LocalRuntime) AllocStats() (buffers int, bytes int64) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.liveBuffers, rt.liveBytes
}

func (rt *LocalRuntime) group(name string) (*localGroup, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	g, ok := rt.groups[name]
	if !ok {
		return nil, errors.Errorf("unknown process group %q", name)
	}
	return g, nil
}

func (rt *LocalRuntime) execute(r *round) error {
	rowBytes, err := exchangeGeometry(r.contribs)
	if err != nil {
		return err
	}
	var plans []destPlan
	switch r.op {
	case opSplits:
		plans, err = planSplits(r.contribs, r.majorAlign)
	case opOffsets:
		plans, err = planOffsets(r.contribs)
	default:
		return errors.Errorf("unknown collective kernel %q", r.op)
	}
	if err != nil {
		return err
	}
	scatter(r.contribs, plans, rowBytes, rt.parallelCfg)
	return nil
}

// Peer is a LocalRuntime handle bound to one rank. It implements Runtime.
type Peer struct {
	rt   *LocalRuntime
	rank int
}

// GlobalRank returns the peer's rank in the world group.
func (p *Peer) GlobalRank() int {
	return p.rank
}

// Empty allocates a zero-initialized buffer registered for peer access.
func (p *Peer) Empty(shape tensor.Shape, dtype tensor.DataType, device tensor.Device) (*tensor.RawTensor, error) {
	t, err := tensor.NewRaw(shape, dtype, device)
	if err != nil {
		return nil, errors.Wrap(err, "allocating symmetric buffer")
	}

	p.rt.mu.Lock()
	p.rt.liveBuffers++
	p.rt.liveBytes += int64(t.ByteSize())
	p.rt.mu.Unlock()

	klog.V(2).Infof("rank %d: allocated %s symmetric buffer, shape %v dtype %s",
		p.rank, humanize.IBytes(uint64(t.ByteSize())), shape, dtype)
	return t, nil
}

// Rank returns the caller's rank within the named group.
func (p *Peer) Rank(group string) (int, error) {
	g, err := p.rt.group(group)
	if err != nil {
		return 0, err
	}
	gr, ok := g.index[p.rank]
	if !ok {
		return 0, errors.Errorf("rank %d is not a member of group %q", p.rank, group)
	}
	return gr, nil
}

// WorldSize returns the number of members of the named group.
func (p *Peer) WorldSize(group string) (int, error) {
	g, err := p.rt.group(group)
	if err != nil {
		return 0, err
	}
	return len(g.ranks), nil
}

// AllToAllVSplits implements the splits-only collective kernel.
func (p *Peer) AllToAllVSplits(input, output, inSplits, outSplitsOffsets *tensor.RawTensor, group string, majorAlign int) error {
	g, err := p.rt.group(group)
	if err != nil {
		return err
	}
	groupRank, ok := g.index[p.rank]
	if !ok {
		return errors.Errorf("rank %d is not a member of group %q", p.rank, group)
	}
	outDesc, err := AsDescriptor(outSplitsOffsets)
	if err != nil {
		return errors.Wrap(err, "output splits/offsets")
	}
	if outDesc.Len() != len(g.ranks) {
		return errors.Errorf("output descriptor covers %d peers, group %q has %d",
			outDesc.Len(), group, len(g.ranks))
	}

	c := &contribution{input: input, output: output, routing: inSplits, outDesc: outDesc}
	return g.run(p.rt, groupRank, opSplits, majorAlign, c)
}

// AllToAllVOffsets implements the explicit-offsets collective kernel.
func (p *Peer) AllToAllVOffsets(input, output, inSplitsOffsets, outSplitsOffsets *tensor.RawTensor, group string) error {
	g, err := p.rt.group(group)
	if err != nil {
		return err
	}
	groupRank, ok := g.index[p.rank]
	if !ok {
		return errors.Errorf("rank %d is not a member of group %q", p.rank, group)
	}
	outDesc, err := AsDescriptor(outSplitsOffsets)
	if err != nil {
		return errors.Wrap(err, "output splits/offsets")
	}
	if outDesc.Len() != len(g.ranks) {
		return errors.Errorf("output descriptor covers %d peers, group %q has %d",
			outDesc.Len(), group, len(g.ranks))
	}

	c := &contribution{input: input, output: output, routing: inSplitsOffsets, outDesc: outDesc}
	return g.run(p.rt, groupRank, opOffsets, 0, c)
}

// localGroup is a named set of ranks plus the rendezvous state for the
// group's current collective round.
type localGroup struct {
	name  string
	ranks []int       // global ranks; index within the slice is the group rank
	index map[int]int // global rank -> group rank

	mu   sync.Mutex
	cond *sync.Cond
	// Round currently collecting contributions. Reset to nil once complete,
	// so a fast rank can already open the next round while slow ranks are
	// still waking from the previous one.
	pending *round
}

func newLocalGroup(name string, ranks []int) *localGroup {
	g := &localGroup{
		name:  name,
		ranks: append([]int(nil), ranks...),
		index: make(map[int]int, len(ranks)),
	}
	for i, r := range ranks {
		g.index[r] = i
	}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// round is one collective invocation of a group. All members must contribute
// before anyone returns; the whole round shares a single error (all-or-
// nothing semantics).
type round struct {
	op         string
	majorAlign int
	contribs   []*contribution
	arrived    int
	done       bool
	err        error
}

// run contributes one rank's buffers to the group's current round, blocking
// until every member has arrived and the exchange has been performed. The
// last arriver executes the exchange itself.
func (g *localGroup) run(rt *LocalRuntime, groupRank int, op string, majorAlign int, c *contribution) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending == nil {
		g.pending = &round{
			op:         op,
			majorAlign: majorAlign,
			contribs:   make([]*contribution, len(g.ranks)),
		}
	}
	r := g.pending

	if r.contribs[groupRank] != nil {
		return errors.Errorf("group %q: rank %d joined the same collective round twice", g.name, groupRank)
	}
	if r.err == nil && r.op != op {
		r.err = errors.Errorf("group %q: mismatched collectives in one round: %s vs %s", g.name, r.op, op)
	}
	if r.err == nil && op == opSplits && r.majorAlign != majorAlign {
		r.err = errors.Errorf("group %q: mismatched major alignment in one round: %d vs %d",
			g.name, r.majorAlign, majorAlign)
	}
	r.contribs[groupRank] = c
	r.arrived++

	if r.arrived == len(g.ranks) {
		if r.err == nil {
			klog.V(2).Infof("group %q: executing %s over %d ranks", g.name, r.op, len(g.ranks))
			r.err = rt.execute(r)
		}
		r.done = true
		g.pending = nil
		g.cond.Broadcast()
	} else {
		for !r.done {
			g.cond.Wait()
		}
	}
	return r.err
}
