// Package watcher keeps an inotify watch on every directory under a root.
//
// A Controller bootstraps one watch per directory, then turns kernel frames
// into Events: directories created or moved in are walked and watched,
// directories deleted or moved out are unwatched, and file changes are only
// reported. Queue overflow triggers a full resync against the filesystem.
//
// Mutation of the Registry happens on the goroutine running Controller.Run.
// Paths, WatchCount, State and Subscribe are safe from any goroutine.
package watcher
