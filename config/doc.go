// Package config loads permission configuration from YAML files.
//
// A configuration file carries the matcher settings and the ordered
// permission list:
//
//	rbac:
//	  roleField: role
//	  defaultRole: user
//	permissions:
//	  - controller: Posts
//	    action: [index, view]
//	    role: '*'
//	  - controller: '*'
//	    action: '*'
//	    role: admin
//
// Rule field order inside each mapping is preserved, because the matcher
// walks fields in definition order. ${VAR} and ${VAR:-default} patterns
// are substituted from the environment before parsing. Watcher reloads
// the file on change; FileProvider exposes it through the rbac.Provider
// contract.
package config
