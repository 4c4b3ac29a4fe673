package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/oriys/gatewayctl/internal/authorizer"
	"github.com/oriys/gatewayctl/internal/logging"
)

func main() {
	logging.InitStructured("json", os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		logging.Op().Error("load aws config", "error", err)
		os.Exit(1)
	}

	a := authorizer.NewTokenAuthorizer(ssm.NewFromConfig(cfg), os.Getenv("TOKEN_PARAMETER"), logging.Op())
	lambda.Start(a.Handle)
}
