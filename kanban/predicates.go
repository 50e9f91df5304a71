package kanban

import "github.com/ardaops/kanban_backend/models"

// Pure rule-table predicates. Each tests exactly one dimension of one
// edge, reads no persistence, and returns false for anything outside the
// state machine (unknown stages included).

// IsValidTransition reports whether (from, to) is an edge of the state
// machine.
func IsValidTransition(from models.CardStage, to models.CardStage) bool {
	return RuleFor(from, to) != nil
}

// IsRoleAllowed reports whether the role may drive the edge. The
// operator role passes every edge unconditionally.
func IsRoleAllowed(from models.CardStage, to models.CardStage, role models.UserRole) bool {
	rule := RuleFor(from, to)
	if rule == nil {
		return false
	}
	if role == models.RoleOperator {
		return true
	}
	for _, allowed := range rule.AllowedRoles {
		if allowed == role {
			return true
		}
	}
	return false
}

// IsLoopTypeAllowed reports whether cards of the loop type may take the
// edge.
func IsLoopTypeAllowed(from models.CardStage, to models.CardStage, loopType models.LoopType) bool {
	rule := RuleFor(from, to)
	if rule == nil {
		return false
	}
	for _, allowed := range rule.AllowedLoopTypes {
		if allowed == loopType {
			return true
		}
	}
	return false
}

// IsMethodAllowed reports whether the trigger method may drive the edge.
func IsMethodAllowed(from models.CardStage, to models.CardStage, method models.TransitionMethod) bool {
	rule := RuleFor(from, to)
	if rule == nil {
		return false
	}
	for _, allowed := range rule.AllowedMethods {
		if allowed == method {
			return true
		}
	}
	return false
}

// IsLinkedOrderAccepted reports whether the supplied order type
// satisfies the edge's linked-order requirement. Edges without the
// requirement accept anything, including no order at all.
func IsLinkedOrderAccepted(from models.CardStage, to models.CardStage, orderType *models.LinkedOrderType) bool {
	rule := RuleFor(from, to)
	if rule == nil {
		return false
	}
	if !rule.RequiresLinkedOrder {
		return true
	}
	if orderType == nil {
		return false
	}
	for _, allowed := range rule.LinkedOrderTypes {
		if allowed == *orderType {
			return true
		}
	}
	return false
}
