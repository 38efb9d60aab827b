// Package pipeline runs one navigation index build: register the descriptors,
// build the sidebar tree, resolve the flat entry list and publish the index.
//
// A build is linear and all-or-nothing. Any stage error aborts the build and
// no index is returned.
package pipeline
