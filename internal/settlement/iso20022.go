package settlement

import (
	"context"
	"encoding/xml"
	"fmt"
	"log"
	"time"

	"github.com/evertrust/banking/internal/models"
	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
)

const institutionBIC = "EVTRUSUS"

// Submitter converts an accepted external transfer into an ISO 20022
// pacs.008 credit transfer and hands it to the settlement network.
// Submission happens after the debit has committed; a failed submission
// leaves the transfer in Processing for the completion operation to
// resolve.
type Submitter struct{}

func NewSubmitter() *Submitter {
	return &Submitter{}
}

func (s *Submitter) Submit(ctx context.Context, et *models.ExternalTransfer, fromAccountNumber, currency string) error {
	doc, err := s.buildPacs008(et, fromAccountNumber, currency)
	if err != nil {
		return err
	}
	return s.send(doc)
}

func (s *Submitter) buildPacs008(et *models.ExternalTransfer, fromAccountNumber, currency string) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	msgID := uuid.New().String()
	now := time.Now()
	reference := fmt.Sprintf("EXT-%d", et.ID)

	// The network message carries the beneficiary amount; the fee stays
	// inside the bank.
	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(msgID),
			CreDtTm: common.ISODateTime(now),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(currency),
				Value: et.Amount.InexactFloat64(),
			},
			IntrBkSttlmDt: (*common.ISODate)(&now),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG",
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &[]common.Max35Text{common.Max35Text(reference)}[0],
					EndToEndId: common.Max35Text(reference),
					TxId:       &[]common.Max35Text{common.Max35Text(reference)}[0],
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode(currency),
					Value: et.Amount.InexactFloat64(),
				},
				IntrBkSttlmDt: (*common.ISODate)(&now),
				ChrgBr:        "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier(institutionBIC)}[0],
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(fromAccountNumber)}[0],
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
							MmbId: common.Max35Text(et.BankCode),
						},
					},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(et.BeneficiaryName)}[0],
				},
			},
		},
	}

	return doc, nil
}

func (s *Submitter) send(doc any) error {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal XML: %w", err)
	}

	// Submission terminates at the log; the clearing-house endpoint is
	// not reachable from this environment.
	log.Printf("[SETTLEMENT] submitting pacs.008 (%d bytes)", len(xmlData))
	return nil
}
