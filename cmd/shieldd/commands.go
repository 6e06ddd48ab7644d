package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/shield/internal/catalog"
	"github.com/eliteGoblin/shield/internal/domain"
	"github.com/eliteGoblin/shield/internal/usecase"
)

var (
	runAdmin    bool
	actionArgs  map[string]string
	exportPath  string
	toggleOff   bool
	listRefresh bool
)

func addBridgeCommands(root *cobra.Command) {
	runCmd := &cobra.Command{
		Use:   "run <script> [args...]",
		Short: "Run a bundled script by name",
		Long: `Runs a script from the scripts directory and prints its output.
With --admin the script runs elevated; when this process is not elevated
the output cannot be captured and only an acknowledgment is printed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				res, err := a.api.RunScript(ctx, args[0], args[1:], runAdmin)
				if err != nil {
					return err
				}
				return printResult(res)
			})
		},
	}
	runCmd.Flags().BoolVar(&runAdmin, "admin", false, "Run with administrator rights")
	runCmd.Flags().SetInterspersed(false)

	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Report whether this process has administrator rights",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				fmt.Println(a.api.IsProcessAdmin())
				return nil
			})
		},
	}

	relaunchCmd := &cobra.Command{
		Use:   "relaunch",
		Short: "Start an elevated bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				if err := a.api.RelaunchAsAdmin(ctx); err != nil {
					return err
				}
				fmt.Println("Elevated bridge starting.")
				return nil
			})
		},
	}

	root.AddCommand(runCmd, adminCmd, relaunchCmd,
		systemCommand(), featuresCommand(), modulesCommand(), actionsCommand(),
		profilesCommand(), updateCommand(), cacheCommand())
}

func systemCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "system", Short: "Read system information"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "info",
			Short: "Print the system information report",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(func(ctx context.Context, a *app) error {
					res, err := a.api.GetSystemInfo(ctx)
					if err != nil {
						return err
					}
					return printResult(res)
				})
			},
		},
		&cobra.Command{
			Use:   "firewall",
			Short: "Print firewall profile status",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(func(ctx context.Context, a *app) error {
					res, err := a.api.GetFirewallStatus(ctx)
					if err != nil {
						return err
					}
					return printResult(res)
				})
			},
		},
	)
	return cmd
}

func featuresCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "features",
		Short: "List features",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tKIND\tCOUNT")
				for _, s := range a.api.Features() {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", s.ID, s.Name, s.Kind, s.Count)
				}
				return w.Flush()
			})
		},
	}
}

func modulesCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "modules", Short: "Inspect and toggle modules"}

	list := &cobra.Command{
		Use:   "list [feature]",
		Short: "List modules with their last known status",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			feature := catalog.HardeningFeatureID
			if len(args) == 1 {
				feature = args[0]
			}
			return withApp(func(ctx context.Context, a *app) error {
				var states []domain.ModuleState
				var err error
				if listRefresh {
					states, err = a.api.RefreshFeature(ctx, feature)
				} else {
					states, err = a.api.Modules(feature)
				}
				if states == nil && err != nil {
					return err
				}
				printModules(states)
				return err
			})
		},
	}
	list.Flags().BoolVar(&listRefresh, "refresh", false, "Query every module before listing")

	refresh := &cobra.Command{
		Use:   "refresh [feature]",
		Short: "Query every module of a feature",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				features := args
				if len(features) == 0 {
					for _, s := range a.api.Features() {
						if s.Kind == catalog.KindModules {
							features = append(features, s.ID)
						}
					}
				}
				var failed bool
				for _, f := range features {
					states, err := a.api.RefreshFeature(ctx, f)
					fmt.Printf("\n[%s]\n", f)
					printModules(states)
					if err != nil {
						fmt.Fprintf(os.Stderr, "%s: %v\n", f, err)
						failed = true
					}
				}
				if failed {
					return fmt.Errorf("some modules could not be queried")
				}
				return nil
			})
		},
	}

	toggle := &cobra.Command{
		Use:   "toggle <feature> <module>",
		Short: "Enable a module (or disable it with --off)",
		Long: `Runs the module's script with -Action Enable, or -Action Disable with --off,
then re-queries its status. For hardening modules "enabled" means the risky
setting is on; use --off to harden.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				st, err := a.api.ToggleModule(ctx, args[0], args[1], !toggleOff)
				if err != nil {
					return err
				}
				printModules([]domain.ModuleState{st})
				return nil
			})
		},
	}
	toggle.Flags().BoolVar(&toggleOff, "off", false, "Disable instead of enable")

	cmd.AddCommand(list, refresh, toggle)
	return cmd
}

func printModules(states []domain.ModuleState) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tENABLED\tPHASE")
	for _, s := range states {
		status, enabled := "-", "-"
		if s.Status != nil {
			status = s.Status.Status
			enabled = fmt.Sprint(s.Status.Enabled)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.Module.ID, s.Module.Name, status, enabled, s.Phase)
	}
	_ = w.Flush()
}

func actionsCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "actions", Short: "List and run feature actions"}

	list := &cobra.Command{
		Use:   "list <feature>",
		Short: "List the actions of a feature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				actions, err := a.api.Actions(args[0])
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tADMIN\tPARAMS\tDESCRIPTION")
				for _, act := range actions {
					var params []string
					for _, p := range act.Params {
						name := p.Name
						if !p.Required {
							name = "[" + name + "]"
						}
						params = append(params, name)
					}
					fmt.Fprintf(w, "%s\t%t\t%s\t%s\n", act.ID, act.RequiresAdmin, strings.Join(params, " "), act.Description)
				}
				return w.Flush()
			})
		},
	}

	run := &cobra.Command{
		Use:   "run <feature> <action>",
		Short: "Run an action",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				res, err := a.api.RunAction(ctx, args[0], args[1], actionArgs)
				if err != nil {
					return err
				}
				return printResult(res)
			})
		},
	}
	run.Flags().StringToStringVarP(&actionArgs, "param", "p", nil, "Action parameter as Name=Value (repeatable)")

	cmd.AddCommand(list, run)
	return cmd
}

func profilesCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "profiles", Short: "Manage hardening profiles"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				list, err := a.api.ListProfiles()
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "\tID\tNAME\tHARDENED")
				for _, p := range list.Profiles {
					marker := ""
					if p.ID == list.Active {
						marker = "*"
					}
					hardened := 0
					for _, v := range p.Settings {
						if v {
							hardened++
						}
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\n", marker, p.ID, p.Name, hardened, len(p.Settings))
				}
				return w.Flush()
			})
		},
	}

	save := &cobra.Command{
		Use:   "save <name>",
		Short: "Save the current module state as a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				p, err := a.api.SaveProfile(args[0])
				if err != nil {
					return err
				}
				fmt.Printf("Saved profile %q (%s)\n", p.Name, p.ID)
				return nil
			})
		},
	}

	apply := &cobra.Command{
		Use:   "apply <id>",
		Short: "Apply a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				res, err := a.api.ApplyProfile(ctx, args[0])
				if res != nil {
					printApply(res)
				}
				return err
			})
		},
	}

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a profile document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			doc, err := usecase.ParseDocument(data)
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, a *app) error {
				p, err := a.api.ImportProfile(doc)
				if err != nil {
					return err
				}
				fmt.Printf("Imported profile %q (%s)\n", p.Name, p.ID)
				return nil
			})
		},
	}

	export := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a profile document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				doc, err := a.api.ExportProfile(args[0])
				if err != nil {
					return err
				}
				data, err := jsonCodec.MarshalIndent(doc, "", "  ")
				if err != nil {
					return err
				}
				if exportPath == "" {
					fmt.Println(string(data))
					return nil
				}
				return os.WriteFile(exportPath, append(data, '\n'), 0600)
			})
		},
	}
	export.Flags().StringVarP(&exportPath, "out", "o", "", "Write to a file instead of stdout")

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				return a.api.DeleteProfile(args[0])
			})
		},
	}

	cmd.AddCommand(list, save, apply, importCmd, export, deleteCmd)
	return cmd
}

func printApply(res *usecase.ApplyResult) {
	fmt.Printf("Applied %s: %d changed, %d unchanged, %d failed\n",
		res.ProfileID, len(res.Changed), len(res.Unchanged), len(res.Failed))
	for _, id := range res.Failed {
		fmt.Printf("  failed: %s\n", id)
	}
}

func updateCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "update", Short: "Check for and install updates"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "check",
			Short: "Check for a newer release and stage it",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(func(ctx context.Context, a *app) error {
					check, err := a.api.CheckForUpdates(ctx)
					if err != nil {
						return err
					}
					if !check.Available {
						fmt.Printf("shieldd %s is up to date\n", check.Current)
						return nil
					}
					fmt.Printf("Update available: %s -> %s (downloaded: %t)\n", check.Current, check.Latest, check.Downloaded)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "install",
			Short: "Install the staged update and start the new bridge",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(func(ctx context.Context, a *app) error {
					if _, err := a.api.CheckForUpdates(ctx); err != nil {
						return err
					}
					return a.api.QuitAndInstall(ctx)
				})
			},
		},
	)
	return cmd
}

func cacheCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "cache", Short: "Inspect the state cache"}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the cached module state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				return printJSON(a.api.GetStateCache())
			})
		},
	})
	return cmd
}
