// Package installer resolves a requested package against the registry and
// concurrently installs its transitive dependency graph into the on-disk
// package store, deduplicating repeated packages and emitting one lockfile
// per installed version.
package installer

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/exp/maps"

	"github.com/conaticus/click/pkg/registry"
	"github.com/conaticus/click/pkg/semver"
	"github.com/conaticus/click/pkg/store"
	"github.com/conaticus/click/pkg/tarball"
)

// extractJob carries one downloaded tarball from the fetch units to the
// blocking extraction loop.
type extractJob struct {
	key  string
	dest string
	data []byte
}

// Installer orchestrates version resolution, cache lookups, concurrent
// fetching and lockfile emission for one configured environment.
type Installer struct {
	registry   *registry.Client
	store      *store.Store
	modulesDir string
	log        *log.Logger
}

// New creates an installer that fetches from reg, stores packages in st and
// links cache hits into modulesDir.
func New(reg *registry.Client, st *store.Store, modulesDir string, logger *log.Logger) *Installer {
	return &Installer{registry: reg, store: st, modulesDir: modulesDir, log: logger}
}

// Execute installs the package named by a "name[@specifier]" token together
// with its transitive dependencies.
//
// The run proceeds in phases: resolve the root version, short-circuit on a
// cache hit, fetch root metadata, fan out the recursive install, wait for
// the task graph to drain, drain the extraction queue, then write one
// lockfile per successfully installed package. Per-node failures are
// collected rather than aborting the run, so unrelated subtrees complete
// and their lockfiles are still written.
func (i *Installer) Execute(ctx context.Context, arg string) error {
	name, comp, err := semver.ParsePackageArg(arg)
	if err != nil {
		return err
	}

	full, _ := comp.ResolveFull()

	if ok, version := i.store.Exists(name, full, comp); ok {
		key := semver.Stringify(name, version)
		i.log.Info("already cached", "package", key)
		return i.store.Link(key, i.modulesDir)
	}

	meta, err := i.versionData(ctx, name, full, comp)
	if err != nil {
		return err
	}

	ledger := NewLedger()
	alloc := NewAllocator()
	jobs := make(chan extractJob, 64)

	// Extraction is CPU and disk bound, so it never runs inside the fetch
	// units; a single long-lived consumer drains the channel instead.
	var extractFailures []NodeError
	done := make(chan struct{})
	go func() {
		defer close(done)
		for job := range jobs {
			if err := tarball.Extract(job.data, job.dest); err != nil {
				extractFailures = append(extractFailures, NodeError{Key: job.key, Err: err})
				continue
			}
			i.log.Debug("extracted", "package", job.key)
		}
	}()

	i.installPackage(ctx, meta, semver.IsLatest(full), jobs, ledger, alloc)

	failures := alloc.Wait()
	close(jobs)
	<-done
	failures = append(failures, extractFailures...)

	failed := make(map[string]bool, len(failures))
	for _, f := range failures {
		failed[f.Key] = true
	}

	written := 0
	for key, entry := range ledger.Snapshot() {
		if failed[key] {
			continue
		}
		if err := i.store.WriteLock(key, &entry); err != nil {
			failures = append(failures, NodeError{Key: key, Err: err})
			continue
		}
		written++
	}

	for _, f := range failures {
		i.log.Error("install failed", "package", f.Key, "err", f.Err)
	}
	i.log.Info("install complete", "installed", written, "failed", len(failures))

	if len(failures) > 0 {
		return fmt.Errorf("%d package(s) failed to install", len(failures))
	}
	return nil
}

// versionData fetches metadata for one version of a package. When the full
// version is already known (a concrete version or "latest") a single cheap
// registry call suffices; otherwise the whole package document is fetched
// and the comparator applied to the published version list.
func (i *Installer) versionData(ctx context.Context, name, full string, comp *semver.Comparator) (*registry.VersionMetadata, error) {
	if full != "" {
		meta, err := i.registry.Version(ctx, name, full)
		if err != nil {
			return nil, err
		}
		// Registry-supplied names end up as filesystem paths in the store.
		if err := semver.ValidateName(meta.Name); err != nil {
			return nil, err
		}
		return meta, nil
	}

	pkg, err := i.registry.Package(ctx, name)
	if err != nil {
		return nil, err
	}
	picked, err := semver.ResolvePartial(comp, maps.Keys(pkg.Versions))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	meta := pkg.Versions[picked]
	if meta.Name == "" {
		meta.Name = name
	}
	if meta.Version == "" {
		meta.Version = picked
	}
	if err := semver.ValidateName(meta.Name); err != nil {
		return nil, err
	}
	return &meta, nil
}

// installPackage schedules the install of one resolved package version and,
// transitively, everything it depends on. The ledger insert happens
// synchronously before the unit is spawned, so a parent's record always
// exists before its children try to append edges to it, and a concurrent
// duplicate of the same key returns immediately without fetching.
func (i *Installer) installPackage(ctx context.Context, meta *registry.VersionMetadata, isLatest bool, jobs chan<- extractJob, ledger *Ledger, alloc *Allocator) {
	key := semver.Stringify(meta.Name, meta.Version)
	if ledger.Resolve(key, isLatest) {
		return
	}

	dest := i.store.EntryDir(key)
	tarURL := meta.Dist.Tarball
	deps := meta.Dependencies

	alloc.Go(key, func() error {
		data, err := i.registry.Download(ctx, tarURL)
		if err != nil {
			return fmt.Errorf("download tarball: %w", err)
		}
		jobs <- extractJob{key: key, dest: dest, data: data}

		for depName, rawSpec := range deps {
			if err := i.installDependency(ctx, key, depName, rawSpec, jobs, ledger, alloc); err != nil {
				// Record the edge's failure but keep resolving siblings.
				alloc.fail(semver.Stringify(depName, rawSpec), err)
			}
		}
		return nil
	})
}

// installDependency resolves a single dependency edge: parse the specifier,
// try to resolve the version locally, consult the cache, and only then fall
// back to registry fetches and recursion.
func (i *Installer) installDependency(ctx context.Context, parentKey, name, rawSpec string, jobs chan<- extractJob, ledger *Ledger, alloc *Allocator) error {
	comp, err := semver.ParseComparator(rawSpec)
	if err != nil {
		return err
	}

	full, _ := comp.ResolveFull()

	if ok, version := i.store.Exists(name, full, comp); ok {
		// The whole cached subtree is reused; no fetch, no recursion.
		i.log.Debug("cache hit", "package", semver.Stringify(name, version))
		return i.store.Link(semver.Stringify(name, version), i.modulesDir)
	}

	meta, err := i.versionData(ctx, name, full, comp)
	if err != nil {
		return err
	}

	ledger.Append(parentKey, semver.Stringify(meta.Name, meta.Version))
	i.installPackage(ctx, meta, semver.IsLatest(full), jobs, ledger, alloc)
	return nil
}
