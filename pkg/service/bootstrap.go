package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/mochi-hpc/go-bedrock/pkg/spec"
)

// Bootstrap replays the dynamic parts of a descriptor onto a running
// daemon: module libraries, SSG groups, ABT-IO instances, providers and
// clients, in that order. Providers are started level by level following
// the descriptor's dependency graph, so a provider never starts before a
// provider it depends on.
//
// Bootstrap is meant for daemons started from a minimal descriptor, or for
// layering additional components onto an already populated one. It stops
// at the first failure.
func Bootstrap(ctx context.Context, h *ServiceHandle, tree *spec.ProcSpec) error {
	plan, err := BuildStartPlan(tree)
	if err != nil {
		return err
	}

	libraries := tree.Libraries()
	names := make([]string, 0, len(libraries))
	for name := range libraries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := h.LoadModule(ctx, name, libraries[name]); err != nil {
			return fmt.Errorf("failed to load module %s: %w", name, err)
		}
		h.logger.Info().Str("module", name).Str("path", libraries[name]).Msg("Module loaded")
	}

	for _, group := range tree.SSG().All() {
		if err := h.AddSSGGroup(ctx, group); err != nil {
			return fmt.Errorf("failed to add SSG group %s: %w", group.Name(), err)
		}
		h.logger.Info().Str("group", group.Name()).Msg("SSG group added")
	}

	for _, instance := range tree.AbtIO().All() {
		if err := h.CreateAbtIOInstance(ctx, instance.Name(), instance.Pool); err != nil {
			return fmt.Errorf("failed to create ABT-IO instance %s: %w", instance.Name(), err)
		}
		h.logger.Info().Str("instance", instance.Name()).Msg("ABT-IO instance created")
	}

	for level, providers := range plan.Levels {
		for _, pr := range providers {
			if err := h.StartProvider(ctx, pr); err != nil {
				return fmt.Errorf("failed to start provider %s: %w", pr.Name(), err)
			}
			h.logger.Info().
				Str("provider", pr.Name()).
				Str("type", pr.Type()).
				Uint16("provider_id", pr.ProviderID()).
				Int("level", level).
				Msg("Provider started")
		}
	}

	for _, client := range tree.Clients().All() {
		if err := h.StartClient(ctx, client); err != nil {
			return fmt.Errorf("failed to start client %s: %w", client.Name(), err)
		}
		h.logger.Info().Str("client", client.Name()).Msg("Client started")
	}

	return nil
}
