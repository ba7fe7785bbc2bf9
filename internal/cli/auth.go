package cli

import (
	"github.com/spf13/cobra"

	"github.com/aiodash/aiodash/pkg/validate"
)

func (a *app) loginCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save the session",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&email, "email", "", "account email (prompted if empty)")
	cmd.RunE = a.guarded("login", func(cmd *cobra.Command, args []string) error {
		var form validate.LoginForm
		var err error
		if form.Email, err = a.valueOrPrompt(email, "Email: "); err != nil {
			return err
		}
		if form.Password, err = a.promptPassword("Password: "); err != nil {
			return err
		}
		if err := form.Validate(); err != nil {
			return err
		}

		user, err := a.store.Login(cmd.Context(), form.Request())
		if err != nil {
			return failed(err, "Login failed")
		}
		a.success("Signed in as %s", user.DisplayName())
		return nil
	})
	return cmd
}

func (a *app) registerCmd() *cobra.Command {
	var form validate.RegisterForm
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&form.Email, "email", "", "account email (prompted if empty)")
	cmd.Flags().StringVar(&form.FullName, "name", "", "full name (prompted if empty)")
	cmd.Flags().StringVar(&form.Company, "company", "", "company name")
	cmd.RunE = a.guarded("register", func(cmd *cobra.Command, args []string) error {
		var err error
		if form.Email, err = a.valueOrPrompt(form.Email, "Email: "); err != nil {
			return err
		}
		if form.FullName, err = a.valueOrPrompt(form.FullName, "Full name: "); err != nil {
			return err
		}
		if form.Password, err = a.promptPassword("Password: "); err != nil {
			return err
		}
		if form.ConfirmPassword, err = a.promptPassword("Confirm password: "); err != nil {
			return err
		}
		if err := form.Validate(); err != nil {
			return err
		}

		reg, err := a.store.Register(cmd.Context(), form.Request())
		if err != nil {
			return failed(err, "Registration failed")
		}
		if reg.VerificationPending {
			msg := reg.Message
			if msg == "" {
				msg = "Check your email to verify your account, then sign in."
			}
			a.hint("%s", msg)
			return nil
		}
		a.success("Account created. Signed in as %s", reg.User.DisplayName())
		return nil
	})
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the saved session",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.guarded("settings", func(cmd *cobra.Command, args []string) error {
		if err := a.store.Logout(); err != nil {
			return err
		}
		a.success("Signed out")
		return nil
	})
	return cmd
}

func (a *app) whoamiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.guarded("settings", func(cmd *cobra.Command, args []string) error {
		s := a.store.Snapshot()
		u := s.User
		return a.render(u, keyValues(
			"ID", u.ID,
			"Email", u.Email,
			"Name", orDash(u.FullName),
			"Company", orDash(u.Company),
			"Role", u.Role,
			"Plan", orDash(u.SubscriptionPlan),
			"Verified", yesNo(u.IsVerified),
			"State", s.State.String(),
		))
	})
	return cmd
}

func (a *app) passwordResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password-reset",
		Short: "Reset a forgotten password",
	}

	var requestEmail string
	request := &cobra.Command{
		Use:   "request",
		Short: "Email a password reset link",
		Args:  cobra.NoArgs,
	}
	request.Flags().StringVar(&requestEmail, "email", "", "account email (prompted if empty)")
	request.RunE = a.guarded("forgot-password", func(cmd *cobra.Command, args []string) error {
		var form validate.ForgotPasswordForm
		var err error
		if form.Email, err = a.valueOrPrompt(requestEmail, "Email: "); err != nil {
			return err
		}
		if err := form.Validate(); err != nil {
			return err
		}
		if err := a.store.RequestPasswordReset(cmd.Context(), form.Email); err != nil {
			return failed(err, "Could not send reset email")
		}
		a.success("If an account exists for %s, a reset link is on its way.", form.Email)
		return nil
	})

	var form validate.ResetPasswordForm
	confirm := &cobra.Command{
		Use:   "confirm",
		Short: "Set a new password with the emailed token",
		Args:  cobra.NoArgs,
	}
	confirm.Flags().StringVar(&form.Email, "email", "", "email from the reset link")
	confirm.Flags().StringVar(&form.Token, "token", "", "token from the reset link")
	confirm.RunE = a.guarded("reset-password", func(cmd *cobra.Command, args []string) error {
		var err error
		if form.Password, err = a.promptPassword("New password: "); err != nil {
			return err
		}
		if form.ConfirmPassword, err = a.promptPassword("Confirm password: "); err != nil {
			return err
		}
		if err := form.Validate(); err != nil {
			return err
		}
		if err := a.store.ConfirmPasswordReset(cmd.Context(), form.Request()); err != nil {
			return failed(err, "Password reset failed")
		}
		a.success("Password updated. Sign in with your new password.")
		return nil
	})

	cmd.AddCommand(request, confirm)
	return cmd
}
