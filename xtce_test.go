package spp

import (
	"strings"
	"testing"
)

const sampleXTCE = `<?xml version="1.0"?>
<SpaceSystem name="Demo" xmlns="http://www.omg.org/spec/XTCE/20180204">
  <TelemetryMetaData>
    <ParameterTypeSet>
      <IntegerParameterType name="U8_Type" signed="false">
        <IntegerDataEncoding sizeInBits="8" encoding="unsigned"/>
      </IntegerParameterType>
      <IntegerParameterType name="Temp_Type" signed="false">
        <IntegerDataEncoding sizeInBits="8" encoding="unsigned">
          <DefaultCalibrator>
            <PolynomialCalibrator>
              <Term exponent="0" coefficient="-40"/>
              <Term exponent="1" coefficient="0.5"/>
            </PolynomialCalibrator>
          </DefaultCalibrator>
        </IntegerDataEncoding>
      </IntegerParameterType>
      <EnumeratedParameterType name="Mode_Type">
        <IntegerDataEncoding sizeInBits="8" encoding="unsigned"/>
        <EnumerationList>
          <Enumeration value="0" label="SAFE"/>
          <Enumeration value="1" label="NOMINAL"/>
        </EnumerationList>
      </EnumeratedParameterType>
    </ParameterTypeSet>
    <ParameterSet>
      <Parameter name="TYPE_ID" parameterTypeRef="U8_Type"/>
      <Parameter name="TEMP" parameterTypeRef="Temp_Type"/>
      <Parameter name="MODE" parameterTypeRef="Mode_Type"/>
    </ParameterSet>
    <ContainerSet>
      <SequenceContainer name="ROOT" abstract="true">
        <EntryList>
          <ParameterRefEntry parameterRef="TYPE_ID"/>
        </EntryList>
      </SequenceContainer>
      <SequenceContainer name="TELEMETRY">
        <EntryList>
          <ParameterRefEntry parameterRef="TEMP"/>
          <ParameterRefEntry parameterRef="MODE"/>
        </EntryList>
        <BaseContainer containerRef="ROOT">
          <RestrictionCriteria>
            <Comparison parameterRef="TYPE_ID" value="1" comparisonOperator="=="/>
          </RestrictionCriteria>
        </BaseContainer>
      </SequenceContainer>
    </ContainerSet>
  </TelemetryMetaData>
</SpaceSystem>`

func TestLoad_ParsesSampleDocument(t *testing.T) {
	ts, err := Load(strings.NewReader(sampleXTCE))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if ts.SpaceSystemName != "Demo" {
		t.Errorf("SpaceSystemName = %q, want Demo", ts.SpaceSystemName)
	}
	if len(ts.ParameterTypes) != 3 {
		t.Errorf("len(ParameterTypes) = %d, want 3", len(ts.ParameterTypes))
	}
	if len(ts.Parameters) != 3 {
		t.Errorf("len(Parameters) = %d, want 3", len(ts.Parameters))
	}
	if ts.RootContainer != "ROOT" {
		t.Errorf("RootContainer = %q, want ROOT", ts.RootContainer)
	}

	tempType, ok := ts.ParameterTypes["Temp_Type"]
	if !ok {
		t.Fatal("Temp_Type not found")
	}
	if tempType.DefaultCalibrator == nil {
		t.Fatal("expected Temp_Type to carry a default calibrator")
	}
	poly, ok := tempType.DefaultCalibrator.(PolynomialCalibrator)
	if !ok || len(poly.Coefficients) != 2 || poly.Coefficients[0] != -40 || poly.Coefficients[1] != 0.5 {
		t.Errorf("DefaultCalibrator = %+v, want polynomial [-40, 0.5]", tempType.DefaultCalibrator)
	}

	modeType, ok := ts.ParameterTypes["Mode_Type"]
	if !ok {
		t.Fatal("Mode_Type not found")
	}
	if len(modeType.EnumLabels) != 2 || modeType.EnumLabels[1].Label != "NOMINAL" {
		t.Errorf("EnumLabels = %+v, want [SAFE NOMINAL]", modeType.EnumLabels)
	}

	telemetry, ok := ts.Containers.Get("TELEMETRY")
	if !ok {
		t.Fatal("TELEMETRY container not found")
	}
	if telemetry.Base == nil || telemetry.Base.Restriction == nil {
		t.Fatal("expected TELEMETRY to carry a restriction criterion")
	}
	cmp, ok := telemetry.Base.Restriction.(Comparison)
	if !ok || cmp.Parameter != "TYPE_ID" || cmp.Value.Int != 1 {
		t.Errorf("restriction = %+v, want Comparison{TYPE_ID == 1}", telemetry.Base.Restriction)
	}
}

func TestLoad_RejectsNonSpaceSystemRoot(t *testing.T) {
	_, err := Load(strings.NewReader(`<NotASpaceSystem/>`))
	if !IsXtceParseErr(err) {
		t.Fatalf("expected XtceParseErr, got %v", err)
	}
}

func TestLoad_RejectsMissingTelemetryMetaData(t *testing.T) {
	_, err := Load(strings.NewReader(`<SpaceSystem name="x"/>`))
	if !IsXtceParseErr(err) {
		t.Fatalf("expected XtceParseErr, got %v", err)
	}
}

func TestLoad_RejectsInvalidXML(t *testing.T) {
	_, err := Load(strings.NewReader(`not xml at all <<<`))
	if !IsXtceParseErr(err) {
		t.Fatalf("expected XtceParseErr, got %v", err)
	}
}

func TestLoad_AcceptsPrefixedNamespace(t *testing.T) {
	doc := `<?xml version="1.0"?>
<xtce:SpaceSystem name="Demo" xmlns:xtce="http://www.omg.org/space/xtce">
  <xtce:TelemetryMetaData>
    <xtce:ParameterTypeSet>
      <xtce:IntegerParameterType name="U8_Type">
        <xtce:IntegerDataEncoding sizeInBits="8" encoding="unsigned"/>
      </xtce:IntegerParameterType>
    </xtce:ParameterTypeSet>
    <xtce:ParameterSet>
      <xtce:Parameter name="FIELD" parameterTypeRef="U8_Type"/>
    </xtce:ParameterSet>
    <xtce:ContainerSet>
      <xtce:SequenceContainer name="ROOT">
        <xtce:EntryList>
          <xtce:ParameterRefEntry parameterRef="FIELD"/>
        </xtce:EntryList>
      </xtce:SequenceContainer>
    </xtce:ContainerSet>
  </xtce:TelemetryMetaData>
</xtce:SpaceSystem>`
	ts, err := Load(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if ts.SpaceSystemName != "Demo" {
		t.Errorf("SpaceSystemName = %q, want Demo", ts.SpaceSystemName)
	}
}

func TestLoad_RejectsDanglingBaseContainer(t *testing.T) {
	doc := `<SpaceSystem name="x">
  <TelemetryMetaData>
    <ParameterTypeSet/>
    <ParameterSet/>
    <ContainerSet>
      <SequenceContainer name="CHILD">
        <BaseContainer containerRef="NOPE"/>
      </SequenceContainer>
    </ContainerSet>
  </TelemetryMetaData>
</SpaceSystem>`
	_, err := Load(strings.NewReader(doc))
	if !IsXtceParseErr(err) {
		t.Fatalf("expected XtceParseErr, got %v", err)
	}
}
