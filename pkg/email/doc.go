// Package email sends the transactional messages of the platform: the
// welcome message with a temporary password and the password reset
// message.
//
// Sender is the transport. PostmarkSender delivers through Postmark and
// DevSender writes each message as an HTML and JSON file pair to a local
// directory. New picks one from Config. Mailer renders the messages from
// embedded html/template files and hands them to a Sender.
//
//	sender, err := email.New(cfg)
//	if err != nil {
//	    return err
//	}
//	mailer := email.NewMailer(sender, cfg.SupportEmail)
//	err = mailer.SendWelcome(ctx, email.WelcomeData{...})
//
// All transport failures wrap ErrFailedToSendEmail.
package email
