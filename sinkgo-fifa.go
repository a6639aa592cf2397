package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jordansinko/sinkgo-fifa/pkg/captcha"
	"github.com/jordansinko/sinkgo-fifa/pkg/datadome"
	"github.com/jordansinko/sinkgo-fifa/pkg/funnel"
	"github.com/jordansinko/sinkgo-fifa/pkg/imap"
	"github.com/jordansinko/sinkgo-fifa/pkg/notify"
	"github.com/jordansinko/sinkgo-fifa/pkg/profiles"
)

var (
	version                = "N/A"
	defaultCaptchaProvider = "advanced"
	defaultCaptchaKey      = "<CAPTCHA_KEY>"
	defaultConcurrency     = 1
	defaultFlowType        = "entry"
	defaultUserFile        = "users.csv"
	defaultImapHost        = "<IMAP_HOST>"
	defaultImapPort        = 993
	defaultImapUsername    = "<IMAP_USERNAME>"
	defaultImapPassword    = "<IMAP_PASSWORD>"
	defaultProfileApi      = "http://127.0.0.1:35000"
)

func main() {

	lj := &lumberjack.Logger{Filename: `./logs/main.log`, MaxSize: 25, Compress: true}
	multiWriter := zerolog.MultiLevelWriter(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}, lj)

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	log := zerolog.New(multiWriter).With().Timestamp().Logger()

	log.Printf("sinkgo-fifa %s", version)

	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.AddConfigPath(".")

	viper.SetDefault("captchaKey", defaultCaptchaKey)
	viper.SetDefault("captchaProvider", defaultCaptchaProvider)
	viper.SetDefault("concurrency", defaultConcurrency)
	viper.SetDefault("flowType", defaultFlowType)
	viper.SetDefault("userFile", defaultUserFile)
	viper.SetDefault("imapHost", defaultImapHost)
	viper.SetDefault("imapPort", defaultImapPort)
	viper.SetDefault("imapUsername", defaultImapUsername)
	viper.SetDefault("imapPassword", defaultImapPassword)
	viper.SetDefault("profileApiEndpoint", defaultProfileApi)
	viper.SetDefault("prewarm", false)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			viper.SafeWriteConfig()
		} else {
			log.Panic().Err(err).Send()
		}
	}

	viper.WatchConfig()

	flowType := viper.GetString("flowType")

	if flowType != "entry" && flowType != "account" {
		panic(fmt.Errorf("flowType must be entry or account"))
	}

	imapHost := viper.GetString("imapHost")
	imapPort := viper.GetInt("imapPort")
	imapUsername := viper.GetString("imapUsername")
	imapPassword := viper.GetString("imapPassword")

	if imapHost == defaultImapHost {
		panic(fmt.Errorf("please set imapHost in config"))
	}

	if imapUsername == defaultImapUsername || imapPassword == defaultImapPassword {
		panic(fmt.Errorf("please set imap credentials in config"))
	}

	captchaProvider := viper.GetString("captchaProvider")
	captchaKey := viper.GetString("captchaKey")

	var sliderSolver captcha.SliderSolver

	switch captchaProvider {

	case "2cap":
		if captchaKey == defaultCaptchaKey {
			panic(fmt.Errorf("please set captcha key in config"))
		}
		sliderSolver = &captcha.TwoCaptcha{Key: captchaKey}

	case "capmon":
		if captchaKey == defaultCaptchaKey {
			panic(fmt.Errorf("please set captcha key in config"))
		}
		sliderSolver = &captcha.CapMon{Key: captchaKey}

	case "simple":
		sliderSolver = &captcha.Simple{}

	default:
		sliderSolver = &captcha.Advanced{Log: log}
	}

	sliderSolver.Initialize()

	var datadomeSolver datadome.DatadomeSolver

	if key := viper.GetString("datadomeKey"); key != "" {
		datadomeSolver = &datadome.Hyper{Authentication: key}
	}

	// validate the imap credentials once up front; tasks build their own sessions
	probe, err := imap.New(imapHost, imapPort, imapUsername, imapPassword)

	if err != nil {
		log.Panic().Err(err).Send()
	}

	if err := probe.Connect(); err != nil {
		log.Panic().Err(err).Send()
	}

	probe.Disconnect()

	newMail := func() (funnel.MailSource, error) {
		return imap.New(imapHost, imapPort, imapUsername, imapPassword)
	}

	profileClient := profiles.NewClient(viper.GetString("profileApiEndpoint"), viper.GetString("profileApiKey"))

	var notifiers notify.Multi

	if webhook := viper.GetString("webhook"); webhook != "" {
		notifiers = append(notifiers, &notify.Discord{Url: webhook, Log: log})
	}

	if amqpUrl := viper.GetString("amqpUrl"); amqpUrl != "" {
		queue := viper.GetString("amqpQueue")

		if queue == "" {
			queue = "sinkgo-fifa"
		}

		sink, err := notify.NewAmqp(amqpUrl, queue, log)

		if err != nil {
			log.Err(err).Send()
		} else {
			defer sink.Close()
			notifiers = append(notifiers, sink)
		}
	}

	us := NewUserStore()

	if err := us.Read(viper.GetString("userFile")); err != nil {
		log.Err(err).Send()
		os.Exit(1)
	}

	pm := NewProxyManager()

	if err := pm.Read(); err != nil {
		log.Err(err).Send()
		os.Exit(1)
	}

	queuePasses := ttlcache.New[string, string](ttlcache.WithTTL[string, string](20 * time.Minute))
	go queuePasses.Start()

	stats := make(chan Stats, 10)
	statsFlushed := make(chan bool)

	go func() {
		totalAttempts := 0
		totalEntered := 0
		totalBlocked := 0
		totalTimeouts := 0
		totalFailures := 0

		for stat := range stats {

			totalAttempts = totalAttempts + stat.Attempts
			totalEntered = totalEntered + stat.Entered
			totalBlocked = totalBlocked + stat.Blocked
			totalTimeouts = totalTimeouts + stat.Timeouts
			totalFailures = totalFailures + stat.Failures

			log.Printf(`attempts: %d     entered: %d     blocked: %d     timeouts: %d     failures: %d`, totalAttempts, totalEntered, totalBlocked, totalTimeouts, totalFailures)
		}

		statsFlushed <- true
	}()

	deps := &TaskDeps{
		Log:         log,
		Users:       us,
		Proxies:     pm,
		Profiles:    profileClient,
		Solver:      sliderSolver,
		Datadome:    datadomeSolver,
		NewMail:     newMail,
		Notifier:    notifiers,
		Stats:       stats,
		Selectors:   funnel.DefaultSelectors(),
		FlowType:    flowType,
		QueuePasses: queuePasses,
		Prewarm:     viper.GetBool("prewarm"),
	}

	tm := NewTaskManager()

	concurrency := viper.GetInt("concurrency")

	if concurrency > us.Count() {
		concurrency = us.Count()
	}

	i := 0
	for i < concurrency {
		tm.AddTask(taskHandler(deps))
		i = i + 1
	}

	tm.StartTasks()
	tm.Wait()

	close(stats)
	<-statsFlushed

	queuePasses.Stop()

	log.Print("done with work")
}
