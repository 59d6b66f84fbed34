package graph

import (
	"errors"

	"github.com/dukex/convoflow/pkg/models"
)

// Validate checks the structural invariants of a flow and reports every violation found.
func Validate(flow *models.Flow) error {
	var errs []error

	starts := 0

	for _, node := range flow.Nodes {
		if node.Type == models.NodeTypeStart {
			starts++

			if incoming := flow.IncomingEdges(node.ID); len(incoming) > 0 {
				errs = append(errs, newValidationError("Validate", "INVALID_ENDPOINT", ErrInvalidEndpoint, "start node %s has %d incoming edges", node.ID, len(incoming)))
			}
		}

		if node.Type == models.NodeTypeEnd {
			if outgoing := flow.OutgoingEdges(node.ID); len(outgoing) > 0 {
				errs = append(errs, newValidationError("Validate", "INVALID_ENDPOINT", ErrInvalidEndpoint, "end node %s has %d outgoing edges", node.ID, len(outgoing)))
			}
		}

		if node.Type == models.NodeTypeCondition {
			errs = append(errs, validateBranches(flow, node)...)
		}
	}

	switch {
	case starts == 0:
		errs = append(errs, newValidationError("Validate", "NO_START_NODE", ErrNoStartNode, "flow %s has no start node", flow.ID))
	case starts > 1:
		errs = append(errs, newValidationError("Validate", "MULTIPLE_START_NODES", ErrMultipleStartNodes, "flow %s has %d start nodes", flow.ID, starts))
	}

	seen := make(map[[2]string]bool, len(flow.Edges))

	for _, edge := range flow.Edges {
		if flow.Node(edge.Source) == nil || flow.Node(edge.Target) == nil {
			errs = append(errs, newValidationError("Validate", "DANGLING_EDGE", ErrDanglingEdge, "edge %s references a missing node", edge.ID))
		}

		if source := flow.Node(edge.Source); source != nil && source.Type != models.NodeTypeCondition && edge.Label != models.EdgeLabelNone {
			errs = append(errs, newValidationError("Validate", "INVALID_BRANCH_LABEL", ErrInvalidBranchLabel, "edge %s is labeled but does not leave a condition node", edge.ID))
		}

		if edge.Source == edge.Target {
			errs = append(errs, newValidationError("Validate", "SELF_LOOP", ErrSelfLoop, "edge %s is a self loop", edge.ID))
		}

		pair := [2]string{edge.Source, edge.Target}
		if seen[pair] {
			errs = append(errs, newValidationError("Validate", "DUPLICATE_EDGE", ErrDuplicateEdge, "edge %s duplicates %s -> %s", edge.ID, edge.Source, edge.Target))
		}

		seen[pair] = true
	}

	return errors.Join(errs...)
}

func validateBranches(flow *models.Flow, node *models.Node) []error {
	var errs []error

	labels := make(map[models.EdgeLabel]int)

	for _, edge := range flow.OutgoingEdges(node.ID) {
		if edge.Label != models.EdgeLabelYes && edge.Label != models.EdgeLabelNo {
			continue
		}

		labels[edge.Label]++
		if labels[edge.Label] > 1 {
			errs = append(errs, newValidationError("Validate", "DUPLICATE_BRANCH", ErrDuplicateBranch, "condition %s has more than one %q edge", node.ID, edge.Label))
		}
	}

	return errs
}
