package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/termfx/astmorph/core"
)

func newTransactionsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"tx"},
		Short:   "Inspect and recover replace transactions",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "pending",
			Short: "List transactions an interrupted replace left open",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				pending, err := a.transactions().ListPendingTransactions()
				if err != nil {
					return err
				}
				if a.jsonOut {
					return writeJSON(a.out, pending)
				}
				if len(pending) == 0 {
					fmt.Fprintf(a.out, "%s no pending transactions\n", yellow("→"))
					return nil
				}
				for _, tx := range pending {
					fmt.Fprintf(a.out, "%s %s %s, %s\n", yellow(tx.ID), tx.Description,
						humanize.Time(tx.Started), plural(len(tx.Operations), "file", "files"))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "recover ID...",
			Short: "Restore the files of pending transactions",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				tm := a.transactions()
				var errs []error
				for _, id := range args {
					if err := tm.RecoverTransaction(id); err != nil {
						errs = append(errs, err)
						continue
					}
					fmt.Fprintf(a.out, "%s rolled back %s\n", green("✓"), id)
				}
				return errors.Join(errs...)
			},
		},
		newTransactionsCleanupCommand(a),
	)
	return cmd
}

func newTransactionsCleanupCommand(a *app) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete finished transaction logs and their backups",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := a.transactions().CleanupOldTransactions(olderThan); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s removed transactions finished before %s\n", green("✓"),
				humanize.Time(time.Now().Add(-olderThan)))
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "only transactions finished this long ago")
	return cmd
}

func (a *app) transactions() *core.TransactionManager {
	writer := core.NewAtomicWriter(core.AtomicWriteConfig{LockTimeout: core.DefaultAtomicConfig().LockTimeout, UseFsync: true})
	writer.SetLogger(a.log)
	return core.NewTransactionManager(a.cfg.Files.TransactionDir, writer)
}
