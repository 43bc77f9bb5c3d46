package resolve

import (
	"path/filepath"

	"ludex/internal/fsops"
	"ludex/internal/library"
	"ludex/internal/logging"
)

// folderMove records one completed relocation so a failed transaction can put
// the folder back.
type folderMove struct {
	source string
	target string
}

// relocate moves member folders under <organized_dir>/<title>/ when
// organize-on-accept is enabled. A member already inside the destination is
// left alone. A failed move undoes the earlier ones and fails the whole
// transition; completed moves are returned so the caller can roll them back
// if the transaction fails afterwards.
func (s *Service) relocate(members []*library.ClusterMember, title string) ([]folderMove, error) {
	if !s.cfg.Library.OrganizeOnAccept {
		return nil, nil
	}
	destDir, err := fsops.EnsureSafePath(s.cfg.Paths.OrganizedDir, title)
	if err != nil {
		return nil, err
	}

	var moves []folderMove
	for _, member := range members {
		source := member.InstancePath
		if filepath.Dir(source) == destDir {
			continue
		}
		target, err := fsops.EnsureSafePath(destDir, filepath.Base(source))
		if err == nil {
			target, err = fsops.NextAvailable(target)
		}
		if err == nil {
			err = fsops.AtomicMove(source, target)
		}
		if err != nil {
			s.rollback(moves)
			return nil, err
		}
		moves = append(moves, folderMove{source: source, target: target})
	}
	return moves, nil
}

// rollback restores completed moves in reverse order. Failures are logged and
// left for the operator; the library itself stays consistent because the
// transaction never recorded the new paths.
func (s *Service) rollback(moves []folderMove) {
	for i := len(moves) - 1; i >= 0; i-- {
		move := moves[i]
		if err := fsops.RollbackMove(move.source, move.target); err != nil {
			s.logger.Warn("move rollback failed",
				logging.String("source", move.source),
				logging.String("target", move.target),
				logging.Error(err))
		}
	}
}

// finalPaths maps member paths through any relocation that just happened.
func finalPaths(members []*library.ClusterMember, moves []folderMove) []string {
	moved := make(map[string]string, len(moves))
	for _, move := range moves {
		moved[move.source] = move.target
	}
	paths := make([]string, 0, len(members))
	for _, member := range members {
		if target, ok := moved[member.InstancePath]; ok {
			paths = append(paths, target)
			continue
		}
		paths = append(paths, member.InstancePath)
	}
	return paths
}
