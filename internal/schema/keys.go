// Package schema validates, normalizes and decodes the untyped monthly budget
// record. It is the only package that knows about the deprecated
// "presupuesto" alias of the annex line items.
package schema

// Record keys as they appear in stored JSON.
const (
	KeyPeriod         = "mes_iso"
	KeyTitleBase      = "titulo_base"
	KeyRationale      = "visto"
	KeyConsiderations = "considerandos"
	KeyArticles       = "articulos"
	KeyAnnex          = "anexo"

	KeyKind        = "tipo"
	KeyDescription = "descripcion"
	KeyAmount      = "monto"
	KeyContent     = "contenido"

	KeyAnnexTitle     = "titulo"
	KeyLineItems      = "anexo_items"
	KeyLineItemsAlias = "presupuesto"
	KeyPenalties      = "penalizaciones"
	KeyClosingNote    = "nota_final"
	KeyCategory       = "categoria"
)

// Keys added by processing. They are never read from input.
const (
	KeySubtotal       = "subtotal"
	KeyPenaltyTotal   = "penalizaciones_total"
	KeyNetTotal       = "total_solicitado"
	KeyMonthName      = "mes_nombre"
	KeyYear           = "anio"
	KeyLongDate       = "fecha_larga"
	KeyResolutionCode = "codigo_res"
	KeyDocumentTitle  = "titulo_documento"
)

const (
	// TotalPlaceholder is replaced with the net total inside every article.
	TotalPlaceholder = "$MONTO_TOTAL"

	DefaultTitleBase = "Resolución"

	// FallbackMonthName and FallbackYear replace the derived date fields when
	// the period cannot be parsed.
	FallbackMonthName = "month"
	FallbackYear      = "year"
)

// RequiredFields lists the top-level keys every record must carry.
var RequiredFields = []string{KeyPeriod, KeyTitleBase, KeyRationale, KeyConsiderations, KeyArticles, KeyAnnex}
