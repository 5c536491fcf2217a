package main

import (
	"context"
	"errors"
	"log"
	"time"

	"giftcode/internal/redeem"
	"giftcode/internal/services"

	"github.com/robfig/cron/v3"
)

type RedeemJob struct {
	service  *services.ServiceRedeem
	schedule string
}

func NewRedeemJob(service *services.ServiceRedeem, schedule string) *RedeemJob {
	return &RedeemJob{service, schedule}
}

func (j *RedeemJob) Start(cronRunner *cron.Cron) error {
	_, err := cronRunner.AddFunc(j.schedule, j.runScheduledTask)
	if err != nil {
		return err
	}
	log.Println("Redeem cronjob start at:", time.Now().Format("2006-01-02 15:04:05"), "cron:", j.schedule)
	return nil
}

func (j *RedeemJob) runScheduledTask() {
	rec, err := j.service.StartAll(context.Background(), nil)
	if errors.Is(err, redeem.ErrJobInFlight) {
		log.Println("Skip scheduled batch, task in progress:", rec.ID)
		return
	}
	if err != nil {
		log.Println("Start scheduled batch:", err)
		return
	}
	log.Println("Scheduled batch started:", rec.ID)
}
