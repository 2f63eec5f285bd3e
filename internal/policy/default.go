package policy

func perms(resource string, actions ...Action) []Permission {
	out := make([]Permission, 0, len(actions))
	for _, a := range actions {
		out = append(out, Permission{Resource: resource, Action: a})
	}
	return out
}

// DefaultPermissionSet returns the built-in role table. Each call returns a fresh copy.
func DefaultPermissionSet() PermissionSet {
	var user []Permission
	user = append(user, perms(ResourceProducts, ActionRead)...)
	user = append(user, perms(ResourceCategories, ActionRead)...)
	user = append(user, perms(ResourceInventory, ActionRead)...)
	user = append(user, perms(ResourceInventoryHistory, ActionRead)...)

	manager := append([]Permission{}, user...)
	manager = append(manager, perms(ResourceProducts, ActionCreate, ActionUpdate)...)
	manager = append(manager, perms(ResourceCategories, ActionCreate, ActionUpdate)...)
	manager = append(manager, perms(ResourceInventory, ActionCreate, ActionUpdate)...)
	manager = append(manager, perms(ResourceUsers, ActionRead)...)

	admin := append([]Permission{}, manager...)
	admin = append(admin, perms(ResourceProducts, ActionDelete)...)
	admin = append(admin, perms(ResourceCategories, ActionDelete)...)
	admin = append(admin, perms(ResourceInventory, ActionDelete)...)
	admin = append(admin, perms(ResourceUsers, ActionCreate, ActionUpdate, ActionDelete)...)

	return PermissionSet{
		RoleUser:    user,
		RoleManager: manager,
		RoleAdmin:   admin,
	}
}
