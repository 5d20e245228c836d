package main

import (
	"log"
	"os"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/haven-health-passport/chaincode/consent/config"
	"github.com/haven-health-passport/chaincode/consent/contracts"
	"github.com/haven-health-passport/chaincode/consent/engine"
	"github.com/haven-health-passport/chaincode/consent/logging"
)

func main() {
	logger, closeLog, err := logging.New(config.LoggingConfig{
		Level:  os.Getenv("CONSENT_LOG_LEVEL"),
		Format: "json",
		Output: "stderr",
	})
	if err != nil {
		log.Panicf("Error creating consent chaincode logger: %v", err)
	}
	defer closeLog()

	e := engine.New(engine.WithLogger(logger))

	// Create the chaincode with multiple contracts
	chaincode, err := contractapi.NewChaincode(
		contracts.NewKeyRegistryContract(e),
		contracts.NewRecordContract(e),
		contracts.NewConsentContract(e),
		contracts.NewAccessContract(e),
		contracts.NewAuditContract(e),
	)
	if err != nil {
		log.Panicf("Error creating consent chaincode: %v", err)
	}

	if err := chaincode.Start(); err != nil {
		log.Panicf("Error starting consent chaincode: %v", err)
	}
}
