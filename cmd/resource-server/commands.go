package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ehr/resourceaccess/internal/config"
	"github.com/ehr/resourceaccess/internal/domain/auditevent"
	"github.com/ehr/resourceaccess/internal/platform/fhir"
	"github.com/ehr/resourceaccess/pkg/fhirmodels"
)

// fhirClient builds a transport client from FHIR_BASE_URL and friends.
func fhirClient(cfg *config.Config) (*fhir.Client, error) {
	if cfg.FHIRBaseURL == "" {
		return nil, fmt.Errorf("FHIR_BASE_URL is not set")
	}
	headers, err := cfg.FHIRHeaderMap()
	if err != nil {
		return nil, err
	}
	return fhir.NewClient(fhir.ClientConfig{
		BaseURL: cfg.FHIRBaseURL,
		Headers: headers,
		Timeout: cfg.FHIRTimeout,
	}, newLogger(cfg))
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseParams turns ["patient=p1", "code=1234"] into a map.
func parseParams(args []string) (map[string]string, error) {
	params := make(map[string]string, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("search parameter %q must be name=value", a)
		}
		params[k] = v
	}
	return params, nil
}

// describeError prints the operation outcome carried by a FHIR error.
func describeError(w io.Writer, err error) error {
	fe := fhir.AsError(err)
	fmt.Fprintf(w, "request failed (%d %s): %s\n", fe.StatusCode, fe.Kind, fe.Message)
	if oo := fe.Outcome(); oo != nil {
		_ = printJSON(w, oo)
	}
	return err
}

func fhirCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fhir",
		Short: "Talk to the configured FHIR endpoint",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <type> <id>",
		Short: "Read a resource",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			client, err := fhirClient(cfg)
			if err != nil {
				return err
			}
			var resource map[string]interface{}
			if err := client.GetResource(cmd.Context(), args[0], args[1], &resource); err != nil {
				return describeError(cmd.ErrOrStderr(), err)
			}
			return printJSON(cmd.OutOrStdout(), resource)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "search <type> [name=value...]",
		Short: "Search resources of a type",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args[1:])
			if err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			client, err := fhirClient(cfg)
			if err != nil {
				return err
			}
			bundle, err := client.SearchResources(cmd.Context(), args[0], params)
			if err != nil {
				return describeError(cmd.ErrOrStderr(), err)
			}
			return printJSON(cmd.OutOrStdout(), bundle)
		},
	})

	putCmd := &cobra.Command{
		Use:   "put",
		Short: "Create or update a resource from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			raw, err := readInput(cmd, path)
			if err != nil {
				return err
			}
			var resource map[string]interface{}
			if err := json.Unmarshal(raw, &resource); err != nil {
				return fmt.Errorf("decode %s: %w", path, err)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			client, err := fhirClient(cfg)
			if err != nil {
				return err
			}
			var stored map[string]interface{}
			if id, _ := resource["id"].(string); id != "" {
				err = client.UpdateResource(cmd.Context(), resource, &stored)
			} else {
				err = client.CreateResource(cmd.Context(), resource, &stored)
			}
			if err != nil {
				return describeError(cmd.ErrOrStderr(), err)
			}
			return printJSON(cmd.OutOrStdout(), stored)
		},
	}
	putCmd.Flags().StringP("file", "f", "-", "Resource JSON file, - for stdin")
	cmd.AddCommand(putCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <type> <id>",
		Short: "Delete a resource",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			client, err := fhirClient(cfg)
			if err != nil {
				return err
			}
			if err := client.DeleteResource(cmd.Context(), args[0], args[1]); err != nil {
				return describeError(cmd.ErrOrStderr(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", fhirmodels.FormatReference(args[0], args[1]))
			return nil
		},
	})

	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

// withPermissions opens the pool and runs fn with a permission-backed audit
// service. Each statement commits on its own so a failed audit insert cannot
// undo a grant change.
func withPermissions(ctx context.Context, fn func(ctx context.Context, svc *auditevent.Service) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	pool, err := openPool(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc := auditevent.NewService(
		auditevent.NewAuditRepoPG(pool),
		auditevent.NewPermissionRepoPG(pool),
		cfg.AuditSource,
		logger,
	)
	return fn(ctx, svc)
}

func grantFromArgs(args []string) *auditevent.PermissionGrant {
	return &auditevent.PermissionGrant{UserID: args[0], ResourceType: args[1], Permission: args[2]}
}

func grantPermission(ctx context.Context, svc *auditevent.Service, g *auditevent.PermissionGrant, out io.Writer) error {
	if err := svc.GrantPermission(ctx, g); err != nil {
		return err
	}
	svc.LogAction(ctx, "cli", fhirmodels.AuditCreate, "PermissionGrant", g.UserID,
		map[string]interface{}{"resource_type": g.ResourceType, "permission": g.Permission})
	fmt.Fprintf(out, "Granted %s on %s to %s\n", g.Permission, g.ResourceType, g.UserID)
	return nil
}

func revokePermission(ctx context.Context, svc *auditevent.Service, g *auditevent.PermissionGrant, out io.Writer) error {
	if err := svc.RevokePermission(ctx, g); err != nil {
		return err
	}
	svc.LogAction(ctx, "cli", fhirmodels.AuditDelete, "PermissionGrant", g.UserID,
		map[string]interface{}{"resource_type": g.ResourceType, "permission": g.Permission})
	fmt.Fprintf(out, "Revoked %s on %s from %s\n", g.Permission, g.ResourceType, g.UserID)
	return nil
}

func permissionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permission",
		Short: "Manage per-user resource permissions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "grant <user> <resource-type> <read|write|delete>",
		Short: "Grant a permission",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			g := grantFromArgs(args)
			return withPermissions(cmd.Context(), func(ctx context.Context, svc *auditevent.Service) error {
				return grantPermission(ctx, svc, g, cmd.OutOrStdout())
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "revoke <user> <resource-type> <read|write|delete>",
		Short: "Revoke a permission",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			g := grantFromArgs(args)
			return withPermissions(cmd.Context(), func(ctx context.Context, svc *auditevent.Service) error {
				return revokePermission(ctx, svc, g, cmd.OutOrStdout())
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check <user> <resource-type> <read|write|delete>",
		Short: "Check whether a user holds a permission",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPermissions(cmd.Context(), func(ctx context.Context, svc *auditevent.Service) error {
				allowed := svc.HasPermission(ctx, args[0], args[1], args[2])
				fmt.Fprintf(cmd.OutOrStdout(), "%t\n", allowed)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list <user>",
		Short: "List a user's grants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPermissions(cmd.Context(), func(ctx context.Context, svc *auditevent.Service) error {
				grants, err := svc.ListPermissions(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%-30s %-10s\n", "RESOURCE TYPE", "PERMISSION")
				for _, g := range grants {
					fmt.Fprintf(out, "%-30s %-10s\n", g.ResourceType, g.Permission)
				}
				return nil
			})
		},
	})

	return cmd
}
