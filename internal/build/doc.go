// Package build runs complete index builds: fetch the source repository,
// load the docs directory, check document links, run the index pipeline,
// write the output files, record the build and announce it.
//
// All entry points (the build command, the server's rebuild endpoint, the
// daemon's watcher and scheduler) go through Service.Run, which executes one
// build at a time.
package build
