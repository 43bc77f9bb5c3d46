package match

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"ludex/internal/config"
	"ludex/internal/library"
	"ludex/internal/logging"
	"ludex/internal/metadata"
)

// Resolver is the slice of the cluster lifecycle manager the engine needs for
// auto-accepting high-confidence proposals. The engine itself only inserts
// suggested clusters; canonical writes stay behind this boundary.
type Resolver interface {
	Accept(ctx context.Context, clusterID int64, canonicalID string) error
}

// ScanReport summarizes one matching pass. Cluster counts, not member counts.
type ScanReport struct {
	Unresolved int
	Suggested  int
	AutoLinked int
	Skipped    int
	Failed     int
}

// Engine scores unresolved instances against canonical games and each other,
// committing each qualifying proposal as its own suggested cluster.
type Engine struct {
	store    *library.Store
	cfg      *config.Config
	resolver Resolver
	logger   *slog.Logger
}

// New creates a match engine. A nil resolver disables auto-accept regardless
// of configuration.
func New(cfg *config.Config, store *library.Store, resolver Resolver, logger *slog.Logger) *Engine {
	return &Engine{
		store:    store,
		cfg:      cfg,
		resolver: resolver,
		logger:   logging.NewComponentLogger(logger, "match"),
	}
}

// target pairs a canonical game with its precomputed signals.
type target struct {
	game    *library.CanonicalGame
	signals Signals
}

// canonicalMatch records one orphan qualifying against a canonical game.
type canonicalMatch struct {
	instance *library.Instance
	target   *target
	score    float64
}

// RunScan performs one matching pass: snapshot the unresolved instances,
// score them against the canonical set and each other, and commit each
// qualifying proposal in its own transaction. Per-proposal failures are
// logged and counted, never fatal; cancellation between proposals leaves no
// partial cluster.
func (e *Engine) RunScan(ctx context.Context) (*ScanReport, error) {
	report := &ScanReport{}

	orphans, err := e.store.ListOrphans(ctx)
	if err != nil {
		return report, err
	}
	report.Unresolved = len(orphans)
	if len(orphans) == 0 {
		e.logger.Info("match scan complete, nothing unresolved")
		return report, nil
	}

	targets, err := e.loadTargets(ctx)
	if err != nil {
		return report, err
	}

	signals := make(map[string]Signals, len(orphans))
	for _, orphan := range orphans {
		signals[orphan.FolderPath] = instanceSignals(orphan)
	}

	// Phase one: each orphan against the canonical set. Qualifying matches
	// leave the orphan pool before orphans are compared with each other.
	var matches []canonicalMatch
	var remaining []*library.Instance
	for _, orphan := range orphans {
		best, score := bestTarget(signals[orphan.FolderPath], targets)
		if best != nil && score >= e.cfg.Match.SuggestThreshold {
			matches = append(matches, canonicalMatch{instance: orphan, target: best, score: score})
		} else {
			remaining = append(remaining, orphan)
		}
	}

	// Phase two: group the leftovers among themselves.
	groups := groupOrphans(remaining, signals, e.cfg.Match.SuggestThreshold)

	autoEnabled := e.cfg.Match.AutoAcceptEnabled && e.resolver != nil

	// High-confidence canonical matches link immediately, one single-member
	// cluster each. The rest share one suggested cluster per canonical.
	drafts := make(map[string]*canonicalDraft)
	for _, match := range matches {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if autoEnabled && match.score >= e.cfg.Match.AutoAcceptThreshold {
			e.commitProposal(ctx, library.ClusterProposal{
				SuggestedTitle:       match.target.game.DisplayTitle,
				SuggestedCanonicalID: match.target.game.ID,
				Confidence:           match.score,
				Metadata:             clusterMetadata(signals, match.instance.FolderPath),
				MemberPaths:          []string{match.instance.FolderPath},
				PrimaryPath:          match.instance.FolderPath,
			}, true, report)
			continue
		}
		draft := drafts[match.target.game.ID]
		if draft == nil {
			draft = &canonicalDraft{target: match.target}
			drafts[match.target.game.ID] = draft
		}
		draft.add(match.instance, match.score)
	}

	for _, canonicalID := range sortedDraftKeys(drafts) {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		draft := drafts[canonicalID]
		primary := earliestInstance(draft.members)
		e.commitProposal(ctx, library.ClusterProposal{
			SuggestedTitle:       draft.target.game.DisplayTitle,
			SuggestedCanonicalID: canonicalID,
			Confidence:           draft.mean(),
			Metadata:             clusterMetadata(signals, memberPaths(draft.members)...),
			MemberPaths:          memberPaths(orderWithPrimary(draft.members, primary)),
			PrimaryPath:          primary.FolderPath,
		}, false, report)
	}

	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		primary := earliestInstance(group.members)
		auto := autoEnabled && group.mean >= e.cfg.Match.AutoAcceptThreshold
		e.commitProposal(ctx, library.ClusterProposal{
			SuggestedTitle: groupTitle(primary, signals[primary.FolderPath].Core),
			Confidence:     group.mean,
			Metadata:       clusterMetadata(signals, memberPaths(group.members)...),
			MemberPaths:    memberPaths(orderWithPrimary(group.members, primary)),
			PrimaryPath:    primary.FolderPath,
		}, auto, report)
	}

	e.logger.Info("match scan complete",
		logging.Int("unresolved", report.Unresolved),
		logging.Int("suggested", report.Suggested),
		logging.Int("auto_linked", report.AutoLinked),
		logging.Int("skipped", report.Skipped),
		logging.Int("failed", report.Failed))
	return report, nil
}

// loadTargets snapshots the canonical set with identity links. A canonical
// whose links cannot be read still participates on title signals alone.
func (e *Engine) loadTargets(ctx context.Context) ([]*target, error) {
	canonicals, err := e.store.ListCanonical(ctx)
	if err != nil {
		return nil, err
	}
	targets := make([]*target, 0, len(canonicals))
	for _, game := range canonicals {
		links, err := e.store.ListLinks(ctx, game.ID)
		if err != nil {
			e.logger.Warn("loading identity links failed",
				logging.String("canonical_id", game.ID),
				logging.Error(err))
			links = nil
		}
		targets = append(targets, &target{game: game, signals: canonicalSignals(game, links)})
	}
	return targets, nil
}

// commitProposal inserts one cluster and, for auto proposals, immediately
// hands it to the resolver. Failures are logged and counted; an auto accept
// that fails leaves the cluster suggested for manual review.
func (e *Engine) commitProposal(ctx context.Context, proposal library.ClusterProposal, auto bool, report *ScanReport) {
	if e.cfg.Match.RememberRejections {
		rejected, err := e.store.RejectedProposalExists(ctx, proposal.MemberPaths, proposal.SuggestedCanonicalID)
		if err != nil {
			report.Failed++
			e.logger.Warn("rejection lookup failed",
				logging.String("title", proposal.SuggestedTitle),
				logging.Error(err))
			return
		}
		if rejected {
			report.Skipped++
			return
		}
	}

	cluster, err := e.store.InsertSuggestedCluster(ctx, proposal)
	if err != nil {
		report.Failed++
		e.logger.Warn("cluster insert failed",
			logging.String("title", proposal.SuggestedTitle),
			logging.Int("members", len(proposal.MemberPaths)),
			logging.Error(err))
		return
	}

	if auto {
		if err := e.resolver.Accept(ctx, cluster.ID, proposal.SuggestedCanonicalID); err != nil {
			report.Suggested++
			e.logger.Warn("auto accept failed, cluster left suggested",
				logging.Int64("cluster_id", cluster.ID),
				logging.Error(err))
			return
		}
		report.AutoLinked++
		e.logger.Info("cluster auto accepted",
			logging.Int64("cluster_id", cluster.ID),
			logging.String("title", proposal.SuggestedTitle),
			logging.Float64("confidence", proposal.Confidence))
		return
	}

	report.Suggested++
	e.logger.Info("cluster suggested",
		logging.Int64("cluster_id", cluster.ID),
		logging.String("title", proposal.SuggestedTitle),
		logging.Int("members", len(proposal.MemberPaths)),
		logging.Float64("confidence", proposal.Confidence))
}

// bestTarget returns the highest scoring canonical for the signals. Exact
// ties resolve toward the most recently updated canonical.
func bestTarget(sig Signals, targets []*target) (*target, float64) {
	var best *target
	bestScore := 0.0
	for _, t := range targets {
		score := scorePair(sig, t.signals)
		switch {
		case best == nil || score > bestScore:
			best = t
			bestScore = score
		case score == bestScore && t.game.UpdatedAt.After(best.game.UpdatedAt):
			best = t
		}
	}
	return best, bestScore
}

// canonicalDraft accumulates suggest-band matches sharing one canonical target.
type canonicalDraft struct {
	target  *target
	members []*library.Instance
	scores  []float64
}

func (d *canonicalDraft) add(instance *library.Instance, score float64) {
	d.members = append(d.members, instance)
	d.scores = append(d.scores, score)
}

func (d *canonicalDraft) mean() float64 {
	var sum float64
	for _, s := range d.scores {
		sum += s
	}
	return sum / float64(len(d.scores))
}

// orphanGroup is one union-find component of mutually similar orphans.
type orphanGroup struct {
	members []*library.Instance
	mean    float64
}

// groupOrphans unions orphan pairs scoring at or above the threshold and
// turns each component of two or more into a group whose confidence is the
// mean of its qualifying pair scores. Groups come back in a deterministic
// order.
func groupOrphans(orphans []*library.Instance, signals map[string]Signals, threshold float64) []orphanGroup {
	if len(orphans) < 2 {
		return nil
	}
	byPath := make(map[string]*library.Instance, len(orphans))
	for _, orphan := range orphans {
		byPath[orphan.FolderPath] = orphan
	}

	uf := newUnionFind()
	type pairScore struct {
		a, b  string
		score float64
	}
	var qualifying []pairScore
	for i := 0; i < len(orphans); i++ {
		for j := i + 1; j < len(orphans); j++ {
			a, b := orphans[i].FolderPath, orphans[j].FolderPath
			score := scorePair(signals[a], signals[b])
			if score < threshold {
				continue
			}
			uf.union(a, b)
			qualifying = append(qualifying, pairScore{a: a, b: b, score: score})
		}
	}
	if len(qualifying) == 0 {
		return nil
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, pair := range qualifying {
		root := uf.find(pair.a)
		sums[root] += pair.score
		counts[root]++
	}

	components := uf.components()
	roots := make([]string, 0, len(components))
	for root := range components {
		roots = append(roots, root)
	}
	sort.Strings(roots)

	groups := make([]orphanGroup, 0, len(roots))
	for _, root := range roots {
		paths := components[root]
		if len(paths) < 2 {
			continue
		}
		sort.Strings(paths)
		members := make([]*library.Instance, 0, len(paths))
		for _, path := range paths {
			members = append(members, byPath[path])
		}
		groups = append(groups, orphanGroup{
			members: members,
			mean:    sums[root] / float64(counts[root]),
		})
	}
	return groups
}

// groupTitle derives a display title for a target-less proposal from the
// primary member, never the raw path.
func groupTitle(primary *library.Instance, core string) string {
	caser := cases.Title(language.Und)
	if core != "" {
		return caser.String(core)
	}
	if title := strings.TrimSpace(primary.Title); title != "" {
		return title
	}
	return caser.String(folderName(primary.FolderPath))
}

// clusterMetadata records the variant markers seen across the given members
// so reviewers can tell regional copies apart.
func clusterMetadata(signals map[string]Signals, paths ...string) metadata.Bag {
	seen := make(map[string]bool)
	var labels []string
	for _, path := range paths {
		for _, label := range signals[path].Variants {
			if !seen[label] {
				seen[label] = true
				labels = append(labels, label)
			}
		}
	}
	bag := metadata.Bag{}
	if len(labels) > 0 {
		sort.Strings(labels)
		bag.Set("variants", strings.Join(labels, ", "))
	}
	return bag
}

func earliestInstance(members []*library.Instance) *library.Instance {
	primary := members[0]
	for _, member := range members[1:] {
		if member.CreatedAt.Before(primary.CreatedAt) {
			primary = member
		}
	}
	return primary
}

// orderWithPrimary returns the members with the primary first, the rest in
// path order.
func orderWithPrimary(members []*library.Instance, primary *library.Instance) []*library.Instance {
	ordered := make([]*library.Instance, 0, len(members))
	ordered = append(ordered, primary)
	rest := make([]*library.Instance, 0, len(members)-1)
	for _, member := range members {
		if member.FolderPath != primary.FolderPath {
			rest = append(rest, member)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].FolderPath < rest[j].FolderPath })
	return append(ordered, rest...)
}

func memberPaths(members []*library.Instance) []string {
	paths := make([]string, 0, len(members))
	for _, member := range members {
		paths = append(paths, member.FolderPath)
	}
	return paths
}

func sortedDraftKeys(drafts map[string]*canonicalDraft) []string {
	keys := make([]string, 0, len(drafts))
	for key := range drafts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// unionFind is a string-keyed disjoint set with path compression and union
// by rank.
type unionFind struct {
	parent map[string]string
	rank   map[string]int
}

func newUnionFind() *unionFind {
	return &unionFind{
		parent: make(map[string]string),
		rank:   make(map[string]int),
	}
}

func (u *unionFind) find(x string) string {
	if _, ok := u.parent[x]; !ok {
		u.parent[x] = x
		u.rank[x] = 0
		return x
	}
	if u.parent[x] != x {
		u.parent[x] = u.find(u.parent[x])
	}
	return u.parent[x]
}

func (u *unionFind) union(a, b string) {
	rootA := u.find(a)
	rootB := u.find(b)
	if rootA == rootB {
		return
	}
	switch {
	case u.rank[rootA] < u.rank[rootB]:
		u.parent[rootA] = rootB
	case u.rank[rootA] > u.rank[rootB]:
		u.parent[rootB] = rootA
	default:
		u.parent[rootB] = rootA
		u.rank[rootA]++
	}
}

func (u *unionFind) components() map[string][]string {
	groups := make(map[string][]string)
	for x := range u.parent {
		root := u.find(x)
		groups[root] = append(groups[root], x)
	}
	return groups
}
