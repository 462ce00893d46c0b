// Package model describes the base objects manipulated by the slides service.
//
// The object model is composed of:
//
//  Items:
//    A slide entry. The only field interpreted by the service is "src", the path of the
//    slide file in the repository. All other fields are carried over untouched.
//
//  Manifests:
//    The ordered list of items, persisted as a JSON array in the repository.
//    Legacy manifests stored as a list of paths or as a {"slides": [...]} object
//    are accepted on read.
package model
