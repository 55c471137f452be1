package email

// Config holds email configuration. The Postmark tokens may be empty when
// DevMode is set.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"EMAIL_SENDER,required"`
	SupportEmail         string `env:"EMAIL_SUPPORT" envDefault:"suporte@leveledu.com.br"`
	DevMode              bool   `env:"EMAIL_DEV_MODE" envDefault:"false"`
	DevDir               string `env:"EMAIL_DEV_DIR" envDefault:".emails"`
}
