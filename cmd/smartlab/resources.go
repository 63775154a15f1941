package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/smartlab/smartlab/internal/gateway"
	"github.com/smartlab/smartlab/internal/platform/auth"
)

var staffRoles = []auth.Role{auth.RoleSuperadmin, auth.RoleReceptionist}

func addListFlags(cmd *cobra.Command) {
	cmd.Flags().String("status", "", "Filter by status")
	cmd.Flags().String("search", "", "Search term")
	cmd.Flags().String("priority", "", "Filter by priority")
	cmd.Flags().Int("page", 0, "Page number")
	cmd.Flags().Int("limit", 0, "Page size")
}

func listQuery(cmd *cobra.Command) gateway.Query {
	q := gateway.Query{}
	for _, name := range []string{"status", "search", "priority"} {
		if f := cmd.Flags().Lookup(name); f != nil && f.Value.String() != "" {
			q[name] = f.Value.String()
		}
	}
	page, _ := cmd.Flags().GetInt("page")
	limit, _ := cmd.Flags().GetInt("limit")
	if page > 0 || limit > 0 {
		q = q.WithPage(page, limit)
	}
	return q
}

// ---------------------------------------------------------------------------
// Patients
// ---------------------------------------------------------------------------

func patientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patients",
		Short: "Manage patient records (staff only)",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List patients",
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/patients", staffRoles, []auth.Permission{auth.PermPatientsRead}); err != nil {
				return err
			}
			out, err := a.gw.Patients.GetAll(ctx, listQuery(cmd))
			if err != nil {
				return err
			}
			return printJSON(out)
		}),
	}
	addListFlags(listCmd)

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one patient",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/patients", staffRoles, []auth.Permission{auth.PermPatientsRead}); err != nil {
				return err
			}
			out, err := a.gw.Patients.GetByID(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(out)
		}),
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Register a patient record",
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/patients", staffRoles, []auth.Permission{auth.PermPatientsWrite}); err != nil {
				return err
			}
			body, err := parseBody(cmd)
			if err != nil {
				return err
			}
			out, err := a.gw.Patients.Create(ctx, body)
			if err != nil {
				return err
			}
			return printJSON(out)
		}),
	}
	createCmd.Flags().String("data", "", "Patient JSON")

	updateCmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a patient record",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/patients", staffRoles, []auth.Permission{auth.PermPatientsWrite}); err != nil {
				return err
			}
			body, err := parseBody(cmd)
			if err != nil {
				return err
			}
			out, err := a.gw.Patients.Update(ctx, args[0], body)
			if err != nil {
				return err
			}
			return printJSON(out)
		}),
	}
	updateCmd.Flags().String("data", "", "Fields to change, as JSON")

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a patient record",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/patients", staffRoles, []auth.Permission{auth.PermPatientsWrite}); err != nil {
				return err
			}
			if err := a.gw.Patients.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Println("Deleted", args[0])
			return nil
		}),
	}

	cmd.AddCommand(listCmd, getCmd, createCmd, updateCmd, deleteCmd)
	return cmd
}

// ---------------------------------------------------------------------------
// Appointments
// ---------------------------------------------------------------------------

func appointmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "appointments",
		Short: "Book and manage lab appointments",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List appointments (patients see their own)",
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/appointments", nil, []auth.Permission{auth.PermAppointmentsRead}); err != nil {
				return err
			}
			out, err := a.gw.Appointments.GetAll(ctx, listQuery(cmd))
			if err != nil {
				return err
			}
			return printJSON(out)
		}),
	}
	addListFlags(listCmd)

	pendingCmd := &cobra.Command{
		Use:   "pending",
		Short: "List appointments awaiting a decision",
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/appointments/pending", staffRoles, []auth.Permission{auth.PermAppointmentsApprove}); err != nil {
				return err
			}
			out, err := a.gw.Appointments.GetPending(ctx, listQuery(cmd))
			if err != nil {
				return err
			}
			return printJSON(out)
		}),
	}
	addListFlags(pendingCmd)

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Book an appointment",
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/appointments", nil, []auth.Permission{auth.PermAppointmentsWrite}); err != nil {
				return err
			}
			body, err := parseBody(cmd)
			if err != nil {
				return err
			}
			out, err := a.gw.Appointments.Create(ctx, body)
			if err != nil {
				return err
			}
			return printJSON(out)
		}),
	}
	createCmd.Flags().String("data", "", `Appointment JSON, e.g. '{"testType":"CBC","date":"2025-02-01","time":"09:00"}'`)

	approveCmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a pending appointment",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/appointments/pending", staffRoles, []auth.Permission{auth.PermAppointmentsApprove}); err != nil {
				return err
			}
			notes, _ := cmd.Flags().GetString("notes")
			out, err := a.gw.Appointments.Approve(ctx, args[0], gateway.ApprovalRequest{
				Notes:          notes,
				ReceptionistID: a.ctrl.User().ID,
			})
			if err != nil {
				return err
			}
			return printJSON(out)
		}),
	}
	approveCmd.Flags().String("notes", "", "Approval notes")

	rejectCmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a pending appointment",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/appointments/pending", staffRoles, []auth.Permission{auth.PermAppointmentsApprove}); err != nil {
				return err
			}
			reason, _ := cmd.Flags().GetString("reason")
			if reason == "" {
				return fmt.Errorf("--reason is required")
			}
			out, err := a.gw.Appointments.Reject(ctx, args[0], gateway.RejectionRequest{
				Reason:         reason,
				ReceptionistID: a.ctrl.User().ID,
			})
			if err != nil {
				return err
			}
			return printJSON(out)
		}),
	}
	rejectCmd.Flags().String("reason", "", "Rejection reason")

	statusCmd := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Set an appointment's status",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/appointments", staffRoles, []auth.Permission{auth.PermAppointmentsWrite}); err != nil {
				return err
			}
			out, err := a.gw.Appointments.UpdateStatus(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(out)
		}),
	}

	homeCmd := &cobra.Command{
		Use:   "home-collection <id>",
		Short: "Decide a home-collection request",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/appointments/pending", staffRoles, []auth.Permission{auth.PermHomeCollectionApprove}); err != nil {
				return err
			}
			approve, _ := cmd.Flags().GetBool("approve")
			date, _ := cmd.Flags().GetString("date")
			at, _ := cmd.Flags().GetString("time")
			collector, _ := cmd.Flags().GetString("collector")
			out, err := a.gw.Appointments.ApproveHomeCollection(ctx, args[0], gateway.HomeCollectionDecision{
				Approved:          approve,
				CollectionDate:    date,
				CollectionTime:    at,
				AssignedCollector: collector,
				ApprovedBy:        a.ctrl.User().ID,
			})
			if err != nil {
				return err
			}
			return printJSON(out)
		}),
	}
	homeCmd.Flags().Bool("approve", false, "Approve (omit to deny)")
	homeCmd.Flags().String("date", "", "Collection date")
	homeCmd.Flags().String("time", "", "Collection time")
	homeCmd.Flags().String("collector", "", "Assigned collector")

	cmd.AddCommand(listCmd, pendingCmd, createCmd, approveCmd, rejectCmd, statusCmd, homeCmd)
	return cmd
}

// ---------------------------------------------------------------------------
// Reports
// ---------------------------------------------------------------------------

func reportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Browse and review test reports",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List reports (patients see their own)",
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/reports", nil, []auth.Permission{auth.PermReportsRead}); err != nil {
				return err
			}
			out, err := a.gw.Reports.GetAll(ctx, listQuery(cmd))
			if err != nil {
				return err
			}
			return printJSON(out)
		}),
	}
	addListFlags(listCmd)

	pendingCmd := &cobra.Command{
		Use:   "pending",
		Short: "List reports awaiting review",
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/reports/pending", staffRoles, []auth.Permission{auth.PermReportsApprove}); err != nil {
				return err
			}
			out, err := a.gw.Reports.GetPending(ctx, listQuery(cmd))
			if err != nil {
				return err
			}
			return printJSON(out)
		}),
	}
	addListFlags(pendingCmd)

	statusCmd := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Move a report through review",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/reports/pending", staffRoles, []auth.Permission{auth.PermReportsApprove}); err != nil {
				return err
			}
			out, err := a.gw.Reports.UpdateStatus(ctx, args[0], args[1], a.ctrl.User().ID)
			if err != nil {
				return err
			}
			return printJSON(out)
		}),
	}

	downloadCmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download a report PDF",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/reports", nil, []auth.Permission{auth.PermReportsDownload}); err != nil {
				return err
			}
			body, _, err := a.gw.Reports.Download(ctx, args[0])
			if err != nil {
				return err
			}
			defer body.Close()

			dest, _ := cmd.Flags().GetString("out")
			if dest == "" {
				dest = "report-" + args[0] + ".pdf"
			}
			f, err := os.Create(dest)
			if err != nil {
				return err
			}
			defer f.Close()
			n, err := io.Copy(f, body)
			if err != nil {
				return err
			}
			fmt.Printf("Saved %s (%d bytes)\n", dest, n)
			return nil
		}),
	}
	downloadCmd.Flags().String("out", "", "Output file (default report-<id>.pdf)")

	cmd.AddCommand(listCmd, pendingCmd, statusCmd, downloadCmd)
	return cmd
}

// ---------------------------------------------------------------------------
// Payments
// ---------------------------------------------------------------------------

func paymentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payments",
		Short: "Track and settle payments",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List payments (patients see their own)",
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/payments", nil, []auth.Permission{auth.PermPaymentsRead}); err != nil {
				return err
			}
			out, err := a.gw.Payments.GetAll(ctx, listQuery(cmd))
			if err != nil {
				return err
			}
			return printJSON(out)
		}),
	}
	addListFlags(listCmd)

	payCmd := &cobra.Command{
		Use:   "pay <id>",
		Short: "Settle a pending payment",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/payments", nil, []auth.Permission{auth.PermPaymentsWrite}); err != nil {
				return err
			}
			method, _ := cmd.Flags().GetString("method")
			out, err := a.gw.Payments.MakePayment(ctx, args[0], map[string]any{"method": method})
			if err != nil {
				return err
			}
			return printJSON(out)
		}),
	}
	payCmd.Flags().String("method", "card", "Payment method")

	statusCmd := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Set a payment's status",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/payments", staffRoles, []auth.Permission{auth.PermPaymentsApprove}); err != nil {
				return err
			}
			out, err := a.gw.Payments.UpdateStatus(ctx, args[0], args[1], a.ctrl.User().ID)
			if err != nil {
				return err
			}
			return printJSON(out)
		}),
	}

	refundCmd := &cobra.Command{
		Use:   "refund <id>",
		Short: "Request a refund for a paid payment",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/payments", nil, []auth.Permission{auth.PermPaymentsWrite}); err != nil {
				return err
			}
			reason, _ := cmd.Flags().GetString("reason")
			out, err := a.gw.Payments.ProcessRefund(ctx, args[0], map[string]any{"reason": reason})
			if err != nil {
				return err
			}
			return printJSON(out)
		}),
	}
	refundCmd.Flags().String("reason", "", "Refund reason")

	refundStatusCmd := &cobra.Command{
		Use:   "refund-status <id> <decision>",
		Short: "Move a refund through its sub-states",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/payments", staffRoles, []auth.Permission{auth.PermPaymentsApprove}); err != nil {
				return err
			}
			out, err := a.gw.Payments.UpdateRefundStatus(ctx, args[0], args[1], a.ctrl.User().ID)
			if err != nil {
				return err
			}
			return printJSON(out)
		}),
	}

	cmd.AddCommand(listCmd, payCmd, statusCmd, refundCmd, refundStatusCmd)
	return cmd
}

// ---------------------------------------------------------------------------
// Complaints
// ---------------------------------------------------------------------------

func complaintsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complaints",
		Short: "File and triage complaints",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List complaints (patients see their own)",
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/complaints", nil, nil); err != nil {
				return err
			}
			out, err := a.gw.Complaints.GetAll(ctx, listQuery(cmd))
			if err != nil {
				return err
			}
			return printJSON(out)
		}),
	}
	addListFlags(listCmd)

	pendingCmd := &cobra.Command{
		Use:   "pending",
		Short: "List unassigned complaints",
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/complaints/pending", staffRoles, []auth.Permission{auth.PermComplaintsApprove}); err != nil {
				return err
			}
			out, err := a.gw.Complaints.GetPending(ctx, listQuery(cmd))
			if err != nil {
				return err
			}
			return printJSON(out)
		}),
	}
	addListFlags(pendingCmd)

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the complaints dashboard aggregates",
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/complaints/stats", staffRoles, []auth.Permission{auth.PermComplaintsRead}); err != nil {
				return err
			}
			out, err := a.gw.Complaints.GetStats(ctx)
			if err != nil {
				return err
			}
			return printJSON(out)
		}),
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "File a complaint",
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/complaints", nil, []auth.Permission{auth.PermComplaintsWrite}); err != nil {
				return err
			}
			body, err := parseBody(cmd)
			if err != nil {
				return err
			}
			out, err := a.gw.Complaints.Create(ctx, body)
			if err != nil {
				return err
			}
			return printJSON(out)
		}),
	}
	createCmd.Flags().String("data", "", `Complaint JSON, e.g. '{"subject":"...","description":"..."}'`)

	assignCmd := &cobra.Command{
		Use:   "assign <id> <staff-id>",
		Short: "Assign a complaint to a staff member",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/complaints", staffRoles, []auth.Permission{auth.PermComplaintsApprove}); err != nil {
				return err
			}
			out, err := a.gw.Complaints.Assign(ctx, args[0], gateway.AssignRequest{AssignedTo: args[1]})
			if err != nil {
				return err
			}
			return printJSON(out)
		}),
	}

	resolveCmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Resolve a complaint",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/complaints", staffRoles, []auth.Permission{auth.PermComplaintsApprove}); err != nil {
				return err
			}
			resolution, _ := cmd.Flags().GetString("resolution")
			if resolution == "" {
				return fmt.Errorf("--resolution is required")
			}
			notes, _ := cmd.Flags().GetString("notes")
			out, err := a.gw.Complaints.Resolve(ctx, args[0], gateway.ResolveRequest{
				Resolution:      resolution,
				ResolutionNotes: notes,
				ResolvedBy:      a.ctrl.User().ID,
			})
			if err != nil {
				return err
			}
			return printJSON(out)
		}),
	}
	resolveCmd.Flags().String("resolution", "", "Resolution summary")
	resolveCmd.Flags().String("notes", "", "Resolution notes")

	commentCmd := &cobra.Command{
		Use:   "comment <id> <text>",
		Short: "Comment on a complaint",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/complaints", nil, nil); err != nil {
				return err
			}
			out, err := a.gw.Complaints.AddComment(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(out)
		}),
	}

	cmd.AddCommand(listCmd, pendingCmd, statsCmd, createCmd, assignCmd, resolveCmd, commentCmd)
	return cmd
}

// ---------------------------------------------------------------------------
// Users (superadmin staff management)
// ---------------------------------------------------------------------------

func usersCmd() *cobra.Command {
	superadmin := []auth.Role{auth.RoleSuperadmin}

	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage staff accounts (superadmin only)",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/users", superadmin, nil); err != nil {
				return err
			}
			out, err := a.gw.Users.GetAll(ctx, listQuery(cmd))
			if err != nil {
				return err
			}
			return printJSON(out)
		}),
	}
	addListFlags(listCmd)

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Provision a staff account",
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/users", superadmin, nil); err != nil {
				return err
			}
			body, err := parseBody(cmd)
			if err != nil {
				return err
			}
			out, err := a.gw.Users.Create(ctx, body)
			if err != nil {
				return err
			}
			return printJSON(out)
		}),
	}
	createCmd.Flags().String("data", "", `Account JSON, e.g. '{"email":"...","role":"receptionist","password":"..."}'`)

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.admit("/users", superadmin, nil); err != nil {
				return err
			}
			if err := a.gw.Users.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Println("Deleted", args[0])
			return nil
		}),
	}

	cmd.AddCommand(listCmd, createCmd, deleteCmd)
	return cmd
}
