package domain

// AccountTransition is the closed set of account-type change commands.
// Each variant carries its own precondition and cascade.
type AccountTransition interface {
	Target() AccountType
	// RequiresNoApprovedPosts reports whether approved posts block the change.
	RequiresNoApprovedPosts() bool
	// CascadesPostDeletion reports whether every owned post is deleted with the change.
	CascadesPostDeletion() bool
	sealed()
}

// ToOrganization promotes a personal account.
type ToOrganization struct{}

func (ToOrganization) Target() AccountType           { return AccountTypeOrganization }
func (ToOrganization) RequiresNoApprovedPosts() bool { return true }
func (ToOrganization) CascadesPostDeletion() bool    { return false }
func (ToOrganization) sealed()                       {}

// ToPersonal demotes an organization account and removes all of its posts.
type ToPersonal struct{}

func (ToPersonal) Target() AccountType           { return AccountTypePersonal }
func (ToPersonal) RequiresNoApprovedPosts() bool { return false }
func (ToPersonal) CascadesPostDeletion() bool    { return true }
func (ToPersonal) sealed()                       {}

// TransitionTo resolves the command that moves an account to target.
// ok is false when target is unknown.
func TransitionTo(target AccountType) (AccountTransition, bool) {
	switch target {
	case AccountTypeOrganization:
		return ToOrganization{}, true
	case AccountTypePersonal:
		return ToPersonal{}, true
	default:
		return nil, false
	}
}
